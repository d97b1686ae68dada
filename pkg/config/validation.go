package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a Config against its struct validation tags using
// go-playground/validator, matching the teacher's validation approach
// for its own APIConfig/LoggingConfig sections.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
