package types

// IOSInfo holds the firmware identity resolved for a device. Version and
// Signed are pointers so an unknown build encodes as null rather than a
// zero value.
type IOSInfo struct {
	Version    *string `json:"version"`
	Build      string  `json:"build"`
	FixVersion bool    `json:"fixVersion,omitempty"`
	Signed     *bool   `json:"signed"`
	Beta       bool    `json:"beta,omitempty"`
}

// DeviceIdentity is a single resolved device: the catalog metadata for the
// reported product code plus the identity fields the device reported itself.
type DeviceIdentity struct {
	Name        string  `json:"name"`
	BoardConfig string  `json:"boardconfig"`
	Platform    string  `json:"platform"`
	CPID        int     `json:"cpid"`
	BDID        int     `json:"bdid"`
	Model       string  `json:"model"`
	UDID        string  `json:"udid"`
	IOS         IOSInfo `json:"ios"`
}
