// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

// ApplySession runs the commands that only touch session state: /clear,
// /temp, /tokens and /system. handled is false for every other command so
// the front-end can deal with it. msg is a confirmation line to show.
func ApplySession(s *chat.Session, res ParseResult) (msg string, handled bool, err error) {
	switch res.ID() {
	case CmdClear:
		s.Clear()
		return "Conversation history cleared.", true, nil

	case CmdTemp:
		if len(res.Args) == 0 {
			return fmt.Sprintf("Temperature is %.2f.", s.Config().Temperature), true, nil
		}
		t, perr := strconv.ParseFloat(res.Args[0], 64)
		if perr != nil {
			return "", true, fmt.Errorf("%w (got %q)", chat.ErrInvalidTemperature, res.Args[0])
		}
		if err := s.SetTemperature(t); err != nil {
			return "", true, err
		}
		return fmt.Sprintf("Temperature set to %.2f.", t), true, nil

	case CmdTokens:
		if len(res.Args) == 0 {
			return fmt.Sprintf("Max tokens is %d.", s.Config().MaxTokens), true, nil
		}
		n, perr := strconv.Atoi(res.Args[0])
		if perr != nil {
			return "", true, fmt.Errorf("%w (got %q)", chat.ErrInvalidMaxTokens, res.Args[0])
		}
		if err := s.SetMaxTokens(n); err != nil {
			return "", true, err
		}
		return fmt.Sprintf("Max tokens set to %d.", n), true, nil

	case CmdSystem:
		s.SetSystemPrompt(res.RawArgs)
		if strings.TrimSpace(res.RawArgs) == "" {
			return "System prompt removed.", true, nil
		}
		return "System prompt updated.", true, nil
	}
	return "", false, nil
}
