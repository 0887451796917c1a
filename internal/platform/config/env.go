// Package config loads process-wide configuration from environment
// variables into a tagged struct, modeled on the teacher's
// libCommons.SetConfigFromEnvVars convention (§6).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/banktrail/ingestor/internal/platform/apperr"
)

// FromEnv populates cfg (a pointer to a struct) from environment variables
// named by each field's `env` tag, applying `envDefault` when the variable is
// unset. Supported field kinds: string, bool, int, []string (comma-split).
//
// A field tagged `env:"X" required:"true"` that resolves to an empty string
// produces a ConfigurationError — the process should fail fast rather than
// start half-configured.
func FromEnv(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config.FromEnv: cfg must be a pointer to a struct")
	}

	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		envKey, ok := field.Tag.Lookup("env")
		if !ok || envKey == "" {
			continue
		}

		raw, present := os.LookupEnv(envKey)
		if !present || raw == "" {
			if def, hasDefault := field.Tag.Lookup("envDefault"); hasDefault {
				raw = def
			} else if field.Tag.Get("required") == "true" {
				return apperr.ConfigurationError{Field: envKey, Message: "required environment variable is not set"}
			} else {
				continue
			}
		}

		fv := v.Field(i)

		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return apperr.ConfigurationError{Field: envKey, Message: "expected a boolean value"}
			}

			fv.SetBool(b)
		case reflect.Int, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return apperr.ConfigurationError{Field: envKey, Message: "expected an integer value"}
			}

			fv.SetInt(n)
		case reflect.Slice:
			if fv.Type().Elem().Kind() != reflect.String {
				continue
			}

			parts := strings.Split(raw, ",")
			for j := range parts {
				parts[j] = strings.TrimSpace(parts[j])
			}

			fv.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}
