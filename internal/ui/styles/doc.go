// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling of the ollama-chat terminal UI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark detection.

# Colors (colors.go)

  - Purple - assistant messages and picker selection
  - Cyan - brand color, user label and prompt
  - Emerald - ready state
  - Amber - waiting state and warnings
  - Rose - error notices

Status markers ([OK], [X], [!], [i]) accompany colors so states stay
readable on monochrome terminals; RenderSuccess and friends are used by
both the TUI and CLI output.

# Theme (theme.go)

	theme := styles.NewTheme()
	line := theme.StatusBar.Render("ready")

# Animations (animations.go)

Spinner frame sets convertible to bubbles spinners, and the ASCII progress
bar used by `ollama-chat pull`.
*/
package styles
