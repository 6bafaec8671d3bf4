// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/render"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS. Message content
// goes through the sanitizing Markdown renderer.
type HTMLExporter struct {
	options  *Options
	renderer *render.HTML
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts, renderer: render.NewHTML()}
}

// Export renders f as an HTML document.
func (e *HTMLExporter) Export(f chat.File) ([]byte, error) {
	if len(f.Messages) == 0 {
		return nil, ErrNoMessages
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	saved := time.Time(f.Timestamp)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"UTF-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("<meta name=\"generator\" content=\"ollama-chat\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(f.Title))
	sb.WriteString("<style>\n")
	sb.WriteString(pageCSS)
	sb.WriteString(e.renderer.CSS())
	sb.WriteString("</style>\n</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	sb.WriteString("<header class=\"header\">\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(f.Title))
	if e.options.IncludeMetadata {
		sb.WriteString("<div class=\"metadata\">\n")
		if f.Model != "" {
			fmt.Fprintf(&sb, "<span><strong>Model:</strong> %s</span>\n", html.EscapeString(f.Model))
		}
		if !saved.IsZero() {
			fmt.Fprintf(&sb, "<span><strong>Saved:</strong> %s</span>\n", formatTimestamp(saved))
		}
		if f.Temperature != nil {
			fmt.Fprintf(&sb, "<span><strong>Temperature:</strong> %.2f</span>\n", *f.Temperature)
		}
		fmt.Fprintf(&sb, "<span><strong>Messages:</strong> %d</span>\n", len(f.Messages))
		sb.WriteString("</div>\n")
	}
	sb.WriteString("</header>\n")

	sb.WriteString("<main class=\"conversation\">\n")
	if f.SystemPrompt != "" {
		fmt.Fprintf(&sb, "<div class=\"system-prompt\"><strong>System:</strong> %s</div>\n",
			html.EscapeString(f.SystemPrompt))
	}
	for _, msg := range f.Messages {
		body, err := e.renderContent(msg)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "<div class=\"message %s-message\">\n", html.EscapeString(string(msg.Role)))
		fmt.Fprintf(&sb, "<div class=\"role-label\">%s</div>\n", html.EscapeString(roleLabel(msg.Role, f.Model)))
		fmt.Fprintf(&sb, "<div class=\"message-content\">%s</div>\n</div>\n", body)
	}
	sb.WriteString("</main>\n")

	fmt.Fprintf(&sb, "<footer class=\"footer\">Exported from <strong>ollama-chat</strong> on %s</footer>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// renderContent renders assistant replies as Markdown. User text is shown
// literally, line breaks kept.
func (e *HTMLExporter) renderContent(msg chat.Message) (string, error) {
	if msg.Role != chat.RoleAssistant {
		return "<p>" + strings.ReplaceAll(html.EscapeString(msg.Content), "\n", "<br>") + "</p>", nil
	}
	out, err := e.renderer.Render(msg.Content)
	if err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}
	return out, nil
}

func (e *HTMLExporter) FileExtension() string { return ".html" }

func (e *HTMLExporter) MimeType() string { return "text/html" }

// =============================================================================
// STYLES
// =============================================================================

const pageCSS = `* { margin: 0; padding: 0; box-sizing: border-box; }
.dark-theme { --bg: #1a1b26; --panel: #24283b; --text: #c0caf5; --muted: #565f89; --border: #414868; --user: #1f2335; --accent: #bb9af7; }
.light-theme { --bg: #ffffff; --panel: #f7f8fa; --text: #24292e; --muted: #6a737d; --border: #e1e4e8; --user: #f6f8fa; --accent: #6f42c1; }
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif; line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px; }
.container { max-width: 900px; margin: 0 auto; }
.header { border-bottom: 1px solid var(--border); padding-bottom: 12px; margin-bottom: 20px; }
.header h1 { color: var(--accent); font-size: 1.6em; }
.metadata { display: flex; flex-wrap: wrap; gap: 16px; color: var(--muted); font-size: 0.9em; }
.system-prompt { border-left: 3px solid var(--accent); padding: 8px 12px; margin-bottom: 16px; color: var(--muted); }
.message { background: var(--panel); border: 1px solid var(--border); border-radius: 8px; padding: 12px 16px; margin-bottom: 12px; }
.user-message { background: var(--user); }
.role-label { font-weight: bold; color: var(--accent); margin-bottom: 6px; }
.message-content pre { overflow-x: auto; padding: 10px; border-radius: 6px; margin: 8px 0; }
.message-content code { font-family: "SF Mono", Monaco, "Fira Code", monospace; font-size: 0.9em; }
.message-content p { margin: 6px 0; }
.footer { color: var(--muted); font-size: 0.85em; text-align: center; margin-top: 24px; }
`
