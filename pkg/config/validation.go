package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tag validation is declarative via go-playground/validator;
// custom rules cover constraints tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The storage root must be an absolute path: the server chdir-agnostic
	// daemon must not depend on its working directory.
	if !filepath.IsAbs(cfg.Storage.Path) {
		return fmt.Errorf("storage.path: must be an absolute path, got %q", cfg.Storage.Path)
	}

	// A queue smaller than the pool would idle workers under load.
	if cfg.Pool.QueueSize < cfg.Pool.Size {
		return fmt.Errorf("pool.queue_size (%d) must be >= pool.size (%d)",
			cfg.Pool.QueueSize, cfg.Pool.Size)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port (%d) conflicts with server.port", cfg.Metrics.Port)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
