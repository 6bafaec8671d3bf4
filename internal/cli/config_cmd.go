// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration",
		Long: `Inspect and edit config.toml. Keys are dotted, for example
generation.temperature or api.url; "config keys" lists them all.`,
		// set, path and keys still work when the current file is invalid,
		// so a bad value can be repaired.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := a.load()
			if err == nil {
				return nil
			}
			switch cmd.Name() {
			case "show", "get":
				return err
			}
			a.cfg = config.Default()
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after the environment and flags are applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(a.cfg)
		},
	}

	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE...",
		Short: "Change one setting in the config file",
		Long: `Change one setting in the config file. Only the file is read, so
environment overrides are not written back.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}

			file := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(file, path); err != nil {
					return fmt.Errorf("config %s: %w", path, err)
				}
			}

			value := strings.Join(args[1:], " ")
			if err := file.Set(args[0], value); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := config.SaveTOML(file, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %q in %s.\n", args[0], value, path)
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List the settable keys",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	cmd.AddCommand(show, get, set, path, keys)
	return cmd
}
