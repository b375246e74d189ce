package types

// ProfileServicePayload is the inner payload of a profile-service
// enrollment profile. URL is rewritten per request to point at the
// confirmation endpoint carrying the flow token.
type ProfileServicePayload struct {
	URL              string   `plist:"URL"`
	DeviceAttributes []string `plist:"DeviceAttributes"`
	Challenge        string   `plist:"Challenge,omitempty"`
}

// EnrollmentProfile is the mobileconfig template that is loaded from disk
// and rebuilt per enrollment request.
type EnrollmentProfile struct {
	PayloadContent      ProfileServicePayload `plist:"PayloadContent"`
	PayloadDescription  string                `plist:"PayloadDescription"`
	PayloadDisplayName  string                `plist:"PayloadDisplayName"`
	PayloadIdentifier   string                `plist:"PayloadIdentifier"`
	PayloadOrganization string                `plist:"PayloadOrganization"`
	PayloadType         string                `plist:"PayloadType"`
	PayloadUUID         string                `plist:"PayloadUUID"`
	PayloadVersion      int                   `plist:"PayloadVersion"`
}
