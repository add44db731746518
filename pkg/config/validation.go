package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for errors using struct validation tags.
//
// Validation is purely declarative: every rule lives in a `validate` tag on
// the config structs. Validate never mutates the config; normalization (such
// as uppercasing the log level) happens in ApplyDefaults.
//
// Returns an error describing every failed rule, or nil if the configuration
// is valid.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their mapstructure name so errors match what users
	// actually write in config files and env vars.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError or similar programming error
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// formatFieldError renders a single validation failure as
// "field 'api.page_size' failed 'max=100' validation (value: 200)".
func formatFieldError(fe validator.FieldError) string {
	// Namespace is "Config.api.page_size"; drop the root struct name
	field := fe.Namespace()
	if idx := strings.IndexByte(field, '.'); idx >= 0 {
		field = field[idx+1:]
	}

	rule := fe.Tag()
	if fe.Param() != "" {
		rule = fmt.Sprintf("%s=%s", rule, fe.Param())
	}

	return fmt.Sprintf("field '%s' failed '%s' validation (value: %v)", field, rule, fe.Value())
}
