// Package config resolves RAP's startup configuration: the two CLI
// positional arguments (§6 "rap [pam-service [mime-types-file]]") overlaid
// with environment-variable overrides, using a "defaults + overlay +
// Validate()" shape.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultPamService    = "webdav"
	DefaultMimeTypesPath = "/etc/mime.types"
	DefaultControlFD     = 3
)

// Config is RAP's fully-resolved startup configuration.
type Config struct {
	PamService    string
	MimeTypesPath string
	ControlFD     int
}

// Load builds a Config from explicit CLI args (either may be "" to take the
// default) overlaid with RAP_PAM_SERVICE / RAP_MIME_TYPES / RAP_CONTROL_FD
// environment variables (explicit value > env > built-in default).
func Load(argPamService, argMimeTypesPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RAP")
	v.AutomaticEnv()
	v.SetDefault("pam_service", DefaultPamService)
	v.SetDefault("mime_types", DefaultMimeTypesPath)
	v.SetDefault("control_fd", DefaultControlFD)

	if argPamService != "" {
		v.Set("pam_service", argPamService)
	}
	if argMimeTypesPath != "" {
		v.Set("mime_types", argMimeTypesPath)
	}

	cfg := Config{
		PamService:    v.GetString("pam_service"),
		MimeTypesPath: v.GetString("mime_types"),
		ControlFD:     v.GetInt("control_fd"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural invariants of a Config.
func (c Config) Validate() error {
	if c.PamService == "" {
		return fmt.Errorf("pam service name must not be empty")
	}
	if c.MimeTypesPath == "" {
		return fmt.Errorf("mime types path must not be empty")
	}
	if c.ControlFD < 0 {
		return fmt.Errorf("control fd must not be negative, got %d", c.ControlFD)
	}
	return nil
}
