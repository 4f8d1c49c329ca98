package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their config key, e.g. store.redis.addr.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("koanf")
		if name == "" || name == "-" {
			return fld.Name
		}

		return name
	})

	v.RegisterStructValidation(storeStructLevel, StoreConfig{})

	return v
}

// storeStructLevel requires the settings of the selected backend.
func storeStructLevel(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(StoreConfig)
	if !ok {
		return
	}

	switch s.Backend {
	case BackendFile:
		if strings.TrimSpace(s.File.Dir) == "" {
			sl.ReportError(s.File.Dir, "file.dir", "Dir", "required_for_backend", BackendFile)
		}
	case BackendRedis:
		if s.Redis.Addr == "" {
			sl.ReportError(s.Redis.Addr, "redis.addr", "Addr", "required_for_backend", BackendRedis)
		}
	case BackendSQLite:
		if strings.TrimSpace(s.SQLite.Path) == "" {
			sl.ReportError(s.SQLite.Path, "sqlite.path", "Path", "required_for_backend", BackendSQLite)
		}
	}

	if strings.ContainsAny(s.KeyPrefix, " \t\n") {
		sl.ReportError(s.KeyPrefix, "key_prefix", "KeyPrefix", "nospace", "")
	}
}

// Validate validates the configuration and returns an error if invalid.
// Validation fails fast - the service should not start with invalid config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator errors to a readable format.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, formatFieldError(e))
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

// formatFieldError formats a single field validation error.
func formatFieldError(e validator.FieldError) string {
	field := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if", "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, toKey(strings.Fields(e.Param())[0]))
	case "required_for_backend":
		return fmt.Sprintf("%s is required for the %s backend", field, e.Param())
	case "nospace":
		return fmt.Sprintf("%s must not contain whitespace", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, toKey(e.Param()))
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// formatFieldPath converts "Config.store.redis.addr" to "store.redis.addr".
func formatFieldPath(namespace string) string {
	if _, rest, found := strings.Cut(namespace, "."); found {
		return rest
	}

	return namespace
}

// toKey converts a Go field name such as ExitDuration to exit_duration.
func toKey(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}

	return b.String()
}
