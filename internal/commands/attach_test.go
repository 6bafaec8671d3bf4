// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAttachment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "remember the milk")

	att, err := ReadAttachment(path)
	if err != nil {
		t.Fatalf("ReadAttachment() error = %v", err)
	}
	if att.Name != "notes.txt" || att.Content != "remember the milk" {
		t.Errorf("ReadAttachment() = %+v", att)
	}
}

func TestReadAttachment_Errors(t *testing.T) {
	dir := t.TempDir()

	big := filepath.Join(dir, "big.log")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxAttachmentSize + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	exact := filepath.Join(dir, "exact.log")
	f, err = os.Create(exact)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxAttachmentSize); err != nil {
		t.Fatal(err)
	}
	f.Close()

	binary := writeFile(t, dir, "blob.bin", "\xff\xfe\x00\x01")

	if _, err := ReadAttachment(big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("ReadAttachment(over limit) error = %v, want ErrFileTooLarge", err)
	}
	if _, err := ReadAttachment(exact); err != nil {
		t.Errorf("ReadAttachment(at limit) error = %v, want nil", err)
	}
	if _, err := ReadAttachment(binary); !errors.Is(err, ErrNotText) {
		t.Errorf("ReadAttachment(binary) error = %v, want ErrNotText", err)
	}
	if _, err := ReadAttachment(dir); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("ReadAttachment(dir) error = %v, want directory error", err)
	}
	if _, err := ReadAttachment(filepath.Join(dir, "missing.txt")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("ReadAttachment(missing) error = %v, want not found", err)
	}
}

func TestAttachments_AddIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	ok := writeFile(t, dir, "a.txt", "alpha")

	var a Attachments
	if _, err := a.Add(ok, filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatal("Add() with a missing file succeeded")
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d after failed Add, want 0", a.Len())
	}
	if got := a.Summary(); got != "No files attached." {
		t.Errorf("Summary() = %q", got)
	}
}

func TestAttachments_Message(t *testing.T) {
	dir := t.TempDir()
	var a Attachments
	if _, err := a.Add(writeFile(t, dir, "a.go", "package a"), writeFile(t, dir, "b.md", "# B")); err != nil {
		t.Fatal(err)
	}

	want := "I'm attaching the following files for reference:\n\n" +
		"File: a.go\n\npackage a\n\n" +
		"File: b.md\n\n# B"
	if got := a.Message(); got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
	if got := a.Names(); len(got) != 2 || got[0] != "a.go" || got[1] != "b.md" {
		t.Errorf("Names() = %q", got)
	}
	if got := a.Summary(); !strings.Contains(got, "a.go, b.md") {
		t.Errorf("Summary() = %q", got)
	}
}

func TestAttachments_Flush(t *testing.T) {
	s := chat.NewSession(chat.DefaultGenerationConfig())
	var a Attachments

	if err := a.Flush(s); err != nil {
		t.Fatalf("Flush(empty) error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Flush(empty) added %d messages", s.Len())
	}

	if _, err := a.Add(writeFile(t, t.TempDir(), "todo.txt", "ship it")); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(s); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d after Flush, want 0", a.Len())
	}

	history := s.History()
	if len(history) != 1 || history[0].Role != chat.RoleUser {
		t.Fatalf("history = %+v, want one user message", history)
	}
	if !strings.HasPrefix(history[0].Content, AttachmentPreamble) || !strings.HasSuffix(history[0].Content, "ship it") {
		t.Errorf("attachment message = %q", history[0].Content)
	}
}

func TestCopyLastReply(t *testing.T) {
	s := chat.NewSession(chat.DefaultGenerationConfig())
	var copied string
	write := func(text string) error { copied = text; return nil }

	if _, err := CopyLastReply(s, write); !errors.Is(err, ErrNothingToCopy) {
		t.Errorf("CopyLastReply(empty) error = %v, want ErrNothingToCopy", err)
	}

	s = sessionWithHistory(t, "llama3")
	msg, err := CopyLastReply(s, write)
	if err != nil {
		t.Fatalf("CopyLastReply() error = %v", err)
	}
	if copied != "hi there" {
		t.Errorf("copied %q, want %q", copied, "hi there")
	}
	if msg != "Copied response to clipboard (8 chars)." {
		t.Errorf("CopyLastReply() msg = %q", msg)
	}

	failing := func(string) error { return errors.New("no display") }
	if _, err := CopyLastReply(s, failing); err == nil || !strings.Contains(err.Error(), "no display") {
		t.Errorf("CopyLastReply(failing) error = %v", err)
	}
}
