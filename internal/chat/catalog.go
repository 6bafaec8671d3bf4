// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// Catalog is the list of model names the service reported as available.
type Catalog struct {
	models []ollama.ModelInfo
}

// NewCatalog wraps the /tags reply.
func NewCatalog(models []ollama.ModelInfo) Catalog {
	out := make([]ollama.ModelInfo, 0, len(models))
	for _, m := range models {
		if m.Name != "" {
			out = append(out, m)
		}
	}
	return Catalog{models: out}
}

// Names returns model names in service order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.models))
	for i, m := range c.models {
		names[i] = m.Name
	}
	return names
}

// Models returns the full entries.
func (c Catalog) Models() []ollama.ModelInfo {
	out := make([]ollama.ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// Len returns the number of models.
func (c Catalog) Len() int {
	return len(c.models)
}

// Contains reports whether name is available.
func (c Catalog) Contains(name string) bool {
	for _, m := range c.models {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Resolve is the single model-selection policy. It returns name when the
// catalog has it; otherwise ErrNoModelSelected with what is available.
// There is no implicit fallback to the first entry.
func (c Catalog) Resolve(name string) (string, error) {
	switch {
	case len(c.models) == 0:
		return "", fmt.Errorf("%w: no models available, pull one with `ollama pull`", ErrNoModelSelected)
	case name == "":
		return "", fmt.Errorf("%w: choose one of %s", ErrNoModelSelected, strings.Join(c.Names(), ", "))
	case !c.Contains(name):
		return "", fmt.Errorf("%w: model %q not found, available: %s", ErrNoModelSelected, name, strings.Join(c.Names(), ", "))
	}
	return name, nil
}
