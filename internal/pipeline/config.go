package pipeline

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Default settings, matching the config defaults in cmd/root.go.
const (
	DefaultMaxIterations = 3
	DefaultLanguage      = "python"
	DefaultTemperature   = 0.7
	DefaultTimeout       = 120 * time.Second
)

// Config controls one pipeline run.
type Config struct {
	MaxIterations int           `validate:"gte=1,lte=10"`
	Language      string        `validate:"required"`
	Parallel      bool          // run documentation, tests and deployment concurrently
	Temperature   float64       `validate:"gte=0,lte=2"`
	MaxTokens     int           `validate:"gte=0"`
	Timeout       time.Duration `validate:"gte=0"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Language:      DefaultLanguage,
		Parallel:      true,
		Temperature:   DefaultTemperature,
		Timeout:       DefaultTimeout,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	return nil
}
