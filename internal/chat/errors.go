// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrEmptyInput is returned when user text is blank after trimming.
	ErrEmptyInput = errors.New("message is empty")

	// ErrAlreadyGenerating is returned when a send is attempted while a
	// response is pending.
	ErrAlreadyGenerating = errors.New("already waiting for a response")

	// ErrEmptyModelResponse is returned when the reply's message content is empty.
	ErrEmptyModelResponse = errors.New("received empty response from model")

	// ErrMalformedResponse is returned when the reply has no message object.
	ErrMalformedResponse = errors.New("malformed response from model")

	// ErrInvalidChatFile is returned when a chat file cannot be loaded.
	ErrInvalidChatFile = errors.New("invalid chat file")

	// ErrNoModelSelected is returned when no usable model is set.
	ErrNoModelSelected = errors.New("no model selected")

	// ErrInvalidTemperature is returned for a temperature outside [0,1].
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 1")

	// ErrInvalidMaxTokens is returned for a non-positive token limit.
	ErrInvalidMaxTokens = errors.New("max tokens must be a positive integer")

	// ErrStaleResult is returned when a worker result belongs to a session
	// that has since been replaced.
	ErrStaleResult = errors.New("result belongs to another session")
)

// =============================================================================
// USER-FACING DESCRIPTIONS
// =============================================================================

// Describe renders err as the one-line notice shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var he *ollama.HTTPError
	var te *ollama.TransportError

	switch {
	case errors.As(err, &he):
		if he.Message != "" {
			return fmt.Sprintf("Error: %d - %s", he.StatusCode, he.Message)
		}
		return fmt.Sprintf("Error: API returned %d", he.StatusCode)
	case errors.As(err, &te):
		switch {
		case te.Timeout():
			return "Error: request to Ollama timed out"
		case te.Decode():
			return "Error: could not decode response from Ollama"
		default:
			return "Error: could not connect to Ollama at " + te.URL
		}
	case errors.Is(err, ErrEmptyModelResponse):
		return "Error: Received empty response from model."
	case errors.Is(err, ErrMalformedResponse):
		return "Error: Malformed response from model."
	case errors.Is(err, ErrEmptyInput):
		return "Please enter a message."
	case errors.Is(err, ErrAlreadyGenerating):
		return "Please wait for the current response."
	}
	return "Error: " + err.Error()
}
