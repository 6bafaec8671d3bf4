// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a readable Markdown transcript with optional YAML
// front matter. Message content is already Markdown and is kept as is.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders f as Markdown.
func (e *MarkdownExporter) Export(f chat.File) ([]byte, error) {
	if len(f.Messages) == 0 {
		return nil, ErrNoMessages
	}

	var sb strings.Builder
	saved := time.Time(f.Timestamp)

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(f.Title))
		if f.Model != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(f.Model))
		}
		if !saved.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", saved.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(f.Messages))
		sb.WriteString("generator: ollama-chat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(f.Title))

	if e.options.IncludeMetadata {
		if f.Model != "" {
			fmt.Fprintf(&sb, "- **Model**: %s\n", f.Model)
		}
		if !saved.IsZero() {
			fmt.Fprintf(&sb, "- **Saved**: %s\n", formatTimestamp(saved))
		}
		if f.Temperature != nil {
			fmt.Fprintf(&sb, "- **Temperature**: %.2f\n", *f.Temperature)
		}
		if f.MaxTokens != nil {
			fmt.Fprintf(&sb, "- **Max tokens**: %d\n", *f.MaxTokens)
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n\n", len(f.Messages))
	}

	if f.SystemPrompt != "" {
		sb.WriteString("> **System:** ")
		sb.WriteString(strings.ReplaceAll(strings.TrimSpace(f.SystemPrompt), "\n", "\n> "))
		sb.WriteString("\n\n")
	}

	for i, msg := range f.Messages {
		if i > 0 {
			sb.WriteString("---\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg.Role, f.Model))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "---\n\n*Exported from ollama-chat on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would turn a heading into markup.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(s)
}

// escapeYAML quotes a scalar when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}
