// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult contains the result of parsing user input.
type ParseResult struct {
	// IsCommand is true if the input starts with /
	IsCommand bool

	// Command is the matched command (nil if not found)
	Command *Command

	// CommandName is the raw command name (e.g., "/help")
	CommandName string

	// Args are the parsed arguments
	Args []string

	// RawArgs is the unparsed arguments portion
	RawArgs string
}

// ID returns the matched command's ID, or CmdUnknown.
func (r ParseResult) ID() ID {
	if r.Command == nil {
		return CmdUnknown
	}
	return r.Command.ID
}

// =============================================================================
// PARSER
// =============================================================================

// Parser handles parsing of slash commands and their arguments.
type Parser struct {
	registry *Registry
}

// NewParser creates a new parser with the given registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse parses user input. IsCommand is false when the input doesn't
// start with /.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return ParseResult{}
	}

	result := ParseResult{IsCommand: true}

	end := strings.IndexFunc(input, unicode.IsSpace)
	if end == -1 {
		result.CommandName = input
	} else {
		result.CommandName = input[:end]
		result.RawArgs = strings.TrimSpace(input[end:])
		result.Args = splitCommandLine(result.RawArgs)
	}

	result.Command = p.registry.Get(result.CommandName)
	return result
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// splitCommandLine splits a command line into tokens, respecting quotes.
func splitCommandLine(input string) []string {
	var tokens []string
	var current strings.Builder
	var inSingle, inDouble bool

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle

		case ch == '"' && !inSingle:
			inDouble = !inDouble

		case ch == '\\' && i+1 < len(runes) && (inDouble || inSingle):
			next := runes[i+1]
			if next == '"' || next == '\'' || next == '\\' {
				current.WriteRune(next)
				i++
			} else {
				current.WriteRune(ch)
			}

		case unicode.IsSpace(ch) && !inSingle && !inDouble:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}

		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// IsCommand returns true if the input appears to be a command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports a missing or malformed command argument.
type ValidationError struct {
	Command string
	Arg     string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("%s: %s", e.Command, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Command, e.Arg, e.Message)
}

// Validate checks required arguments and reports unknown commands.
func (r ParseResult) Validate() error {
	if !r.IsCommand {
		return nil
	}
	if r.Command == nil {
		return &ValidationError{Command: r.CommandName, Message: "unknown command, type /help"}
	}
	for i, def := range r.Command.Args {
		if def.Required && i >= len(r.Args) {
			return &ValidationError{Command: r.Command.Name, Arg: def.Name, Message: "required argument missing, usage " + r.Command.Usage}
		}
	}
	return nil
}
