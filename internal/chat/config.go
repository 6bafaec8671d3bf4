// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"math"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// GenerationConfig holds the parameters sent with every request.
type GenerationConfig struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// DefaultGenerationConfig returns the defaults with no model chosen.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Validate checks temperature and token bounds. The model may be empty;
// that is caught at send time.
func (c GenerationConfig) Validate() error {
	if err := ValidateTemperature(c.Temperature); err != nil {
		return err
	}
	return ValidateMaxTokens(c.MaxTokens)
}

// ValidateTemperature reports ErrInvalidTemperature for t outside [0,1].
func ValidateTemperature(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w (got %g)", ErrInvalidTemperature, t)
	}
	return nil
}

// ValidateMaxTokens reports ErrInvalidMaxTokens for n <= 0.
func ValidateMaxTokens(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidMaxTokens, n)
	}
	return nil
}
