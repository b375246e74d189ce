package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Settings holds the profile display metadata and workflow options that
// don't belong on the command line. Loaded from settings.json in the
// working directory; every field has a sensible default.
type Settings struct {
	Name              string            `json:"name"`
	Organization      string            `json:"organization"`
	Description       string            `json:"description"`
	PayloadIdentifier string            `json:"payload_identifier"`
	Query             map[string]string `json:"query"`
	Mode              string            `json:"mode"`
	DoneURL           string            `json:"done_url"`
}

func LoadSettings() *Settings {
	var settings Settings

	cwd, err := os.Getwd()
	if err != nil {
		log.Print(err)
	}

	settingsPath := filepath.Join(cwd, "settings.json")

	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		fmt.Println(err)
		return applyDefaults(&settings)
	}
	jsonFile, err := os.Open(settingsPath)

	if err != nil {
		log.Print(err)
	}

	if err := json.NewDecoder(jsonFile).Decode(&settings); err != nil {
		log.Print(err)
	}
	defer jsonFile.Close()
	return applyDefaults(&settings)
}

func applyDefaults(settings *Settings) *Settings {
	if settings.Name == "" {
		settings.Name = "Device Enrollment"
	}
	if settings.Organization == "" {
		settings.Organization = "UDID Director"
	}
	if settings.Description == "" {
		settings.Description = "Install this temporary profile to identify your device."
	}
	if settings.PayloadIdentifier == "" {
		settings.PayloadIdentifier = "com.udiddirector.profile-service"
	}
	return settings
}
