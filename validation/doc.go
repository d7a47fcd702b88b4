// Package validation checks configuration structs against their
// `validate` struct tags.
//
//	type Config struct {
//	    Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
//	}
//	err := validation.Validate(cfg)
//
// Failures are INVALID_INPUT errors whose details list every offending field
// by its mapstructure key.
package validation
