package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPamService, cfg.PamService)
	assert.Equal(t, DefaultMimeTypesPath, cfg.MimeTypesPath)
}

func TestLoadExplicitArgsOverrideDefaults(t *testing.T) {
	cfg, err := Load("myservice", "/opt/mime.types")
	require.NoError(t, err)
	assert.Equal(t, "myservice", cfg.PamService)
	assert.Equal(t, "/opt/mime.types", cfg.MimeTypesPath)
}

func TestValidateRejectsEmptyFields(t *testing.T) {
	err := Config{PamService: "", MimeTypesPath: "/etc/mime.types"}.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsNegativeFD(t *testing.T) {
	err := Config{PamService: "webdav", MimeTypesPath: "/etc/mime.types", ControlFD: -1}.Validate()
	assert.Error(t, err)
}
