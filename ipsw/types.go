package ipsw

// Firmware is a single build the catalog knows for a device.
type Firmware struct {
	Identifier  string `json:"identifier"`
	Version     string `json:"version"`
	BuildID     string `json:"buildid"`
	SHA1Sum     string `json:"sha1sum"`
	MD5Sum      string `json:"md5sum"`
	Filesize    int64  `json:"filesize"`
	URL         string `json:"url"`
	ReleaseDate string `json:"releasedate"`
	UploadDate  string `json:"uploaddate"`
	Signed      bool   `json:"signed"`
}

// DeviceResponse is the catalog entry for one product code.
type DeviceResponse struct {
	Name        string     `json:"name"`
	Identifier  string     `json:"identifier"`
	BoardConfig string     `json:"boardconfig"`
	Platform    string     `json:"platform"`
	CPID        int        `json:"cpid"`
	BDID        int        `json:"bdid"`
	Firmwares   []Firmware `json:"firmwares"`
}

// FirmwareForBuild returns the firmware exactly matching a build id, or
// nil when the catalog doesn't know the build. An unknown build is a
// valid outcome, not an error.
func (d *DeviceResponse) FirmwareForBuild(build string) *Firmware {
	for i := range d.Firmwares {
		if d.Firmwares[i].BuildID == build {
			return &d.Firmwares[i]
		}
	}
	return nil
}

// FirmwareForVersion returns the first firmware whose version string
// exactly equals v. When multiple builds share a version string the first
// entry in catalog order wins.
func (d *DeviceResponse) FirmwareForVersion(v string) *Firmware {
	for i := range d.Firmwares {
		if d.Firmwares[i].Version == v {
			return &d.Firmwares[i]
		}
	}
	return nil
}
