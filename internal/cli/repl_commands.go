// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

var errLibraryDisabled = errors.New("the chat library is disabled")

// command runs one slash command. errQuit ends the loop.
func (r *repl) command(ctx context.Context, line string) error {
	res := r.parser.Parse(line)
	if res.ID() == commands.CmdModel && len(res.Args) == 0 {
		r.printNote(commands.FormatModels(r.catalog, r.session.Config().Model))
		return nil
	}
	if err := res.Validate(); err != nil {
		return err
	}

	if msg, handled, err := commands.ApplySession(r.session, res); handled {
		if err != nil {
			return err
		}
		r.printNote(msg)
		return nil
	}

	switch res.ID() {
	case commands.CmdHelp:
		fmt.Fprintln(r.out, r.registry.Help())

	case commands.CmdQuit:
		return errQuit

	case commands.CmdNew:
		r.session = chat.NewSession(r.session.Config())
		r.savedID = ""
		r.printNote("Started a new chat.")

	case commands.CmdModel:
		name, err := r.catalog.Resolve(res.Args[0])
		if err != nil {
			return err
		}
		r.session.SetModel(name)
		r.printNote("Switched to model " + name + ".")

	case commands.CmdModels:
		if err := r.loadModels(ctx); err != nil {
			return err
		}
		r.printNote(commands.FormatModels(r.catalog, r.session.Config().Model))

	case commands.CmdSave:
		var path string
		if len(res.Args) > 0 {
			path = res.Args[0]
		}
		saved, err := commands.SaveFile(r.session, path)
		if err != nil {
			return err
		}
		r.printNote("Chat saved to " + saved + ".")

	case commands.CmdLoad:
		s, msg, err := commands.LoadFile(res.Args[0], r.session.Config(), r.catalog)
		if err != nil {
			return err
		}
		r.log.Info("chat file loaded", zap.String("path", res.Args[0]), zap.Int("messages", s.Len()))
		r.session = s
		r.savedID = ""
		r.printNote(msg)

	case commands.CmdAttach:
		if len(res.Args) > 0 {
			added, err := r.attachments.Add(res.Args...)
			if err != nil {
				return err
			}
			for _, a := range added {
				r.log.Info("file attached", zap.String("path", a.Path), zap.Int("bytes", len(a.Content)))
			}
		}
		r.printNote(r.attachments.Summary())

	case commands.CmdDetach:
		n := r.attachments.Len()
		r.attachments.Clear()
		r.printNote(fmt.Sprintf("Dropped %d attached file(s).", n))

	case commands.CmdCopy:
		msg, err := commands.CopyLastReply(r.session, r.clipboard)
		if err != nil {
			return err
		}
		r.printNote(msg)

	case commands.CmdStore:
		return r.storeChat(ctx, res.RawArgs)

	case commands.CmdChats:
		if r.store == nil {
			return errLibraryDisabled
		}
		metas, err := r.store.List(ctx)
		if err != nil {
			return fmt.Errorf("could not list chats: %w", err)
		}
		fmt.Fprintln(r.out, storage.FormatList(metas))

	case commands.CmdOpen:
		return r.openChat(ctx, res.Args[0])
	}
	return nil
}

func (r *repl) storeChat(ctx context.Context, title string) error {
	if r.store == nil {
		return errLibraryDisabled
	}
	if r.session.Len() == 0 {
		return errors.New("nothing to store yet")
	}
	if title = strings.TrimSpace(title); title != "" {
		r.session.Title = title
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rec := storage.FromSession(r.session)
	rec.ID = r.savedID
	id, err := r.store.Save(ctx, rec)
	if err != nil {
		return fmt.Errorf("could not store chat: %w", err)
	}
	r.savedID = id
	r.session.Title = rec.Title
	r.printNote(fmt.Sprintf("Chat stored as %q (%s).", rec.Title, id))
	return nil
}

func (r *repl) openChat(ctx context.Context, id string) error {
	if r.store == nil {
		return errLibraryDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rec, err := r.store.Load(ctx, id)
	if err != nil {
		return err
	}

	current := r.session.Config()
	s := rec.Session(current)
	line := fmt.Sprintf("Opened %q (%d messages).", s.Title, s.Len())
	if want := s.Config().Model; r.catalog.Len() > 0 && !r.catalog.Contains(want) {
		s.SetModel(current.Model)
		line += fmt.Sprintf(" Model %q is not available, keeping %q.", want, current.Model)
	}
	r.session = s
	r.savedID = rec.ID
	r.printNote(line)
	return nil
}
