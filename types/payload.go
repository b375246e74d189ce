package types

// DevicePayload is the identity document a device posts back after
// installing the profile-service payload. The device reports the fields
// named in the profile's DeviceAttributes array. VERSION carries the
// firmware build id, not a marketing version.
type DevicePayload struct {
	UDID       string `plist:"UDID" json:"UDID"`
	Product    string `plist:"PRODUCT" json:"PRODUCT"`
	Version    string `plist:"VERSION" json:"VERSION"`
	Serial     string `plist:"SERIAL,omitempty" json:"SERIAL,omitempty"`
	IMEI       string `plist:"IMEI,omitempty" json:"IMEI,omitempty"`
	MEID       string `plist:"MEID,omitempty" json:"MEID,omitempty"`
	ICCID      string `plist:"ICCID,omitempty" json:"ICCID,omitempty"`
	DeviceName string `plist:"DEVICE_NAME,omitempty" json:"DEVICE_NAME,omitempty"`
	Language   string `plist:"LANGUAGE,omitempty" json:"LANGUAGE,omitempty"`
}
