// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/export"
	"github.com/jeranaias/ollama-chat/internal/storage"
	"github.com/jeranaias/ollama-chat/internal/util"
)

func newChatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage the chat library",
		Long: `Manage chats kept with /store. The library lives under
~/.ollama-chat/chats unless storage.dir says otherwise.`,
	}

	// withStore opens the library around fn.
	withStore := func(fn func(cmd *cobra.Command, args []string, store storage.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return fmt.Errorf("could not open chat library: %w", err)
			}
			defer store.Close()
			return fn(cmd, args, store)
		}
	}

	var asJSON bool
	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored chats, newest first",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, args []string, store storage.Store) error {
			var metas []storage.Meta
			var err error
			if search != "" {
				metas, err = store.Search(cmd.Context(), search)
			} else {
				metas, err = store.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("chats list", map[string]any{"chats": metas}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), storage.FormatList(metas))
			return nil
		}),
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	list.Flags().StringVarP(&search, "search", "s", "", "only chats whose title or messages contain this text")

	var raw bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a stored chat",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store storage.Store) error {
			rec, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTranscript(cmd.OutOrStdout(), rec.File(), a.transcriptRenderer(raw))
			return nil
		}),
	}
	show.Flags().BoolVar(&raw, "raw", false, "print replies without markdown rendering")

	rename := &cobra.Command{
		Use:   "rename ID TITLE...",
		Short: "Retitle a stored chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store storage.Store) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return fmt.Errorf("title must not be empty")
			}
			if err := store.Rename(cmd.Context(), args[0], title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q.\n", args[0], title)
			return nil
		}),
	}

	del := &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Delete stored chats",
		Args:    cobra.MinimumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store storage.Store) error {
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted "+id+".")
			}
			return nil
		}),
	}

	var format string
	exportCmd := &cobra.Command{
		Use:   "export ID [FILE]",
		Short: "Write a stored chat as a chat file, Markdown or HTML",
		Long: `Write a stored chat. The default json format is the one /save uses, so
/load and "show" can read it back; markdown and html are for reading.
Without FILE the document goes to stdout. A FILE that is an existing
directory gets a generated name.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store storage.Store) error {
			exporter, err := export.ForFormat(format, nil)
			if err != nil {
				return err
			}
			rec, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f := rec.File()
			blob, err := exporter.Export(f)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				_, err = cmd.OutOrStdout().Write(blob)
				return err
			}

			path := args[1]
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, export.Filename(f, exporter, time.Now()))
			}
			if err := util.AtomicWriteFile(path, blob, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Exported "+args[0]+" to "+path+".")
			return nil
		}),
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "json, markdown or html")

	cmd.AddCommand(list, show, rename, del, exportCmd)
	return cmd
}
