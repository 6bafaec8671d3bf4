// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// =============================================================================
// CHAT FILES
// =============================================================================

// SaveFile writes s as a chat file and returns the path used. An empty path
// picks the timestamped default name in the working directory.
func SaveFile(s *chat.Session, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = chat.DefaultFileName(time.Now())
	}

	data, err := s.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to encode chat: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save chat: %w", err)
	}
	return path, nil
}

// LoadFile reads a chat file into a new session. Parameters the file omits
// come from current. A model the catalog does not list is replaced by the
// current model and msg says so. An empty catalog (service unreachable)
// trusts the file.
func LoadFile(path string, current chat.GenerationConfig, catalog chat.Catalog) (s *chat.Session, msg string, err error) {
	blob, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", chat.ErrInvalidChatFile, err)
	}

	s, err = chat.Deserialize(blob, current)
	if err != nil {
		return nil, "", err
	}

	msg = fmt.Sprintf("Loaded %d messages from %s.", s.Len(), path)
	if want := s.Config().Model; catalog.Len() > 0 && !catalog.Contains(want) {
		s.SetModel(current.Model)
		msg += fmt.Sprintf(" Model %q is not available, keeping %q.", want, current.Model)
	}
	return s, msg, nil
}

// FormatModels lists the catalog one name per line, marking current.
func FormatModels(c chat.Catalog, current string) string {
	if c.Len() == 0 {
		return "No models found. Pull one with `ollama pull <model>`."
	}

	var sb strings.Builder
	sb.WriteString("Available models:")
	for _, m := range c.Models() {
		marker := "  "
		if m.Name == current {
			marker = "* "
		}
		sb.WriteString("\n" + marker + m.Name)
		if size := m.FormatSize(); size != "" {
			sb.WriteString("  (" + size + ")")
		}
	}
	return sb.String()
}
