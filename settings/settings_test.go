package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults(t *testing.T) {
	settings := applyDefaults(&Settings{})

	assert.Equal(t, "Device Enrollment", settings.Name)
	assert.Equal(t, "UDID Director", settings.Organization)
	assert.Equal(t, "com.udiddirector.profile-service", settings.PayloadIdentifier)
	assert.NotEmpty(t, settings.Description)
}

func TestApplyDefaults_KeepsConfiguredValues(t *testing.T) {
	settings := applyDefaults(&Settings{
		Name:         "Acme Enrollment",
		Organization: "Acme",
		Mode:         "direct",
		DoneURL:      "https://acme.example.com/done",
	})

	assert.Equal(t, "Acme Enrollment", settings.Name)
	assert.Equal(t, "Acme", settings.Organization)
	assert.Equal(t, "direct", settings.Mode)
	assert.Equal(t, "https://acme.example.com/done", settings.DoneURL)
	assert.Equal(t, "com.udiddirector.profile-service", settings.PayloadIdentifier)
}
