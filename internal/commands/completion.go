// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// Callbacks for dynamic completion, set by the front-end.
	ModelsFn func() []string // Returns available models
	ChatsFn  func() []string // Returns saved chat IDs
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns full-line candidates for input. Each candidate replaces
// the whole line, which is what line editors expect.
func (c *Completer) Complete(input string) []string {
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	end := strings.IndexByte(input, ' ')
	if end == -1 {
		return c.completeCommands(input)
	}

	cmd := c.registry.Get(input[:end])
	if cmd == nil || len(cmd.Args) == 0 {
		return nil
	}

	head := input[:end+1]
	partial := strings.TrimLeft(input[end+1:], " ")
	if strings.ContainsAny(partial, " \"'") {
		return nil
	}

	var values []string
	switch cmd.Args[0].Type {
	case ArgTypeModel:
		values = c.completeFromList(c.models(), partial)
	case ArgTypeChat:
		if c.ChatsFn != nil {
			values = c.completeFromList(c.ChatsFn(), partial)
		}
	case ArgTypeFile:
		values = completeFiles(partial, true)
	case ArgTypeAnyFile:
		values = completeFiles(partial, false)
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = head + v
	}
	return out
}

func (c *Completer) models() []string {
	if c.ModelsFn == nil {
		return nil
	}
	return c.ModelsFn()
}

// completeCommands returns command names and aliases matching partial.
func (c *Completer) completeCommands(partial string) []string {
	partial = strings.ToLower(partial)

	var out []string
	for _, cmd := range c.registry.All() {
		if strings.HasPrefix(cmd.Name, partial) {
			out = append(out, cmd.Name)
		}
	}
	if len(out) == 0 {
		for _, cmd := range c.registry.All() {
			for _, alias := range cmd.Aliases {
				if strings.HasPrefix(alias, partial) {
					out = append(out, alias)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *Completer) completeFromList(values []string, partial string) []string {
	lower := strings.ToLower(partial)
	var out []string
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			out = append(out, v)
		}
	}
	return out
}

// completeFiles lists directories and files matching partial, only chat
// files (.json) when chatFilesOnly is set.
func completeFiles(partial string, chatFilesOnly bool) []string {
	dir, prefix := filepath.Split(partial)
	readDir := dir
	if readDir == "" {
		readDir = "."
	}

	entries, err := os.ReadDir(readDir)
	if err != nil {
		return nil
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		switch {
		case e.IsDir():
			out = append(out, dir+name+string(filepath.Separator))
		case !chatFilesOnly, strings.EqualFold(filepath.Ext(name), ".json"):
			out = append(out, dir+name)
		}
	}
	return out
}
