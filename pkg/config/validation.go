package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/fseditor/pkg/identity"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.HTTP.Enabled {
		return fmt.Errorf("adapters: the http adapter must be enabled")
	}

	if cfg.Adapters.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("adapters.http.shutdown_timeout: must be > 0")
	}

	// Both ports bound on the same host; 0 picks a free one each time.
	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 && cfg.Metrics.Port == cfg.Adapters.HTTP.Port {
		return fmt.Errorf("metrics.port: %d is already used by adapters.http", cfg.Metrics.Port)
	}

	if cfg.Identity.Source == "static" {
		if _, err := identity.ParseMAC(cfg.Identity.MAC); err != nil {
			return fmt.Errorf("identity.mac: %w", err)
		}
	}

	// Username without password (or the reverse) would enable auth with an
	// empty secret.
	if (cfg.Editor.Username == "") != (cfg.Editor.Password == "") {
		return fmt.Errorf("editor: username and password must be set together")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
