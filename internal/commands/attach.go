// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

// =============================================================================
// ATTACHMENTS
// =============================================================================

// MaxAttachmentSize is the largest file /attach accepts.
const MaxAttachmentSize = 10 * 1024 * 1024

// AttachmentPreamble opens the message that carries attached files.
const AttachmentPreamble = "I'm attaching the following files for reference:\n\n"

var (
	// ErrFileTooLarge is returned for files over MaxAttachmentSize.
	ErrFileTooLarge = errors.New("file is too large, the limit is 10MB")

	// ErrNotText is returned for files that are not UTF-8 text.
	ErrNotText = errors.New("file is not text")

	// ErrNothingToCopy is returned by CopyLastReply before the first reply.
	ErrNothingToCopy = errors.New("no assistant response to copy")
)

// Attachment is one file read for sending.
type Attachment struct {
	Name    string
	Path    string
	Content string
}

// ReadAttachment reads path as a text attachment.
func ReadAttachment(path string) (Attachment, error) {
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Attachment{}, fmt.Errorf("%s: file not found", path)
		}
		return Attachment{}, err
	}
	if info.IsDir() {
		return Attachment{}, fmt.Errorf("%s: path is a directory", path)
	}
	if info.Size() > MaxAttachmentSize {
		return Attachment{}, fmt.Errorf("%s: %w", path, ErrFileTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, err
	}
	if !utf8.Valid(data) {
		return Attachment{}, fmt.Errorf("%s: %w", path, ErrNotText)
	}
	return Attachment{Name: filepath.Base(path), Path: path, Content: string(data)}, nil
}

// Attachments holds the files waiting for the next message. The zero value
// is empty and ready to use.
type Attachments struct {
	files []Attachment
}

// Add reads each path and queues it. Nothing is queued if any path fails.
func (a *Attachments) Add(paths ...string) ([]Attachment, error) {
	read := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		att, err := ReadAttachment(p)
		if err != nil {
			return nil, err
		}
		read = append(read, att)
	}
	a.files = append(a.files, read...)
	return read, nil
}

func (a *Attachments) Len() int { return len(a.files) }

// Names lists the queued file names in attach order.
func (a *Attachments) Names() []string {
	names := make([]string, len(a.files))
	for i, f := range a.files {
		names[i] = f.Name
	}
	return names
}

func (a *Attachments) Clear() { a.files = nil }

// Message renders the queued files as one user message.
func (a *Attachments) Message() string {
	var sb strings.Builder
	sb.WriteString(AttachmentPreamble)
	for _, f := range a.files {
		fmt.Fprintf(&sb, "File: %s\n\n%s\n\n", f.Name, f.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Flush appends the queued files to s as a user message and empties the
// queue. It does nothing when the queue is empty.
func (a *Attachments) Flush(s *chat.Session) error {
	if len(a.files) == 0 {
		return nil
	}
	if err := s.AppendUserMessage(a.Message()); err != nil {
		return err
	}
	a.Clear()
	return nil
}

// Summary describes the queue for /attach without arguments.
func (a *Attachments) Summary() string {
	if len(a.files) == 0 {
		return "No files attached."
	}
	return fmt.Sprintf("Attached (sent with your next message): %s", strings.Join(a.Names(), ", "))
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// ClipboardFunc writes text to a clipboard.
type ClipboardFunc func(text string) error

// SystemClipboard writes to the OS clipboard.
func SystemClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// LastReply returns the most recent assistant message of s.
func LastReply(s *chat.Session) (string, bool) {
	history := s.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleAssistant && history[i].Content != "" {
			return history[i].Content, true
		}
	}
	return "", false
}

// CopyLastReply copies the latest assistant message through write and
// returns the confirmation line.
func CopyLastReply(s *chat.Session, write ClipboardFunc) (string, error) {
	text, ok := LastReply(s)
	if !ok {
		return "", ErrNothingToCopy
	}
	if write == nil {
		write = SystemClipboard
	}
	if err := write(text); err != nil {
		return "", fmt.Errorf("failed to copy to clipboard: %w", err)
	}

	size := fmt.Sprintf("%d chars", utf8.RuneCountInString(text))
	if n := utf8.RuneCountInString(text); n >= 1000 {
		size = fmt.Sprintf("%.1fK chars", float64(n)/1000)
	}
	return "Copied response to clipboard (" + size + ").", nil
}
