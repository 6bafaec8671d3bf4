// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

// VersionInfo is what "version --json" prints.
type VersionInfo struct {
	AppVersion    string `json:"app_version"`
	OllamaVersion string `json:"ollama_version"`
	GoVersion     string `json:"go_version"`
	OllamaAPIURL  string `json:"ollama_api_url"`
}

func newVersionCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the app and Ollama versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			info := VersionInfo{
				AppVersion:   chat.AppVersion,
				GoVersion:    runtime.Version(),
				OllamaAPIURL: a.cfg.API.URL,
			}
			v, err := a.backend().Version(ctx)
			if err != nil {
				info.OllamaVersion = "unknown (could not connect)"
			} else {
				info.OllamaVersion = v
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return NewJSONResponse("version", info).Print(out)
			}
			fmt.Fprintln(out, RenderField("ollama-chat", info.AppVersion))
			fmt.Fprintln(out, RenderField("Ollama", info.OllamaVersion))
			fmt.Fprintln(out, RenderField("Go", info.GoVersion))
			fmt.Fprintln(out, RenderField("API", info.OllamaAPIURL))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
