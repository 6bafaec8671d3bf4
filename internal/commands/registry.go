// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// ID identifies a built-in command independent of the alias typed.
type ID int

const (
	CmdUnknown ID = iota
	CmdHelp
	CmdQuit
	CmdClear
	CmdNew
	CmdTemp
	CmdTokens
	CmdSystem
	CmdModel
	CmdModels
	CmdSave
	CmdLoad
	CmdStore
	CmdChats
	CmdOpen
	CmdAttach
	CmdDetach
	CmdCopy
)

// Command represents a slash command that can be executed.
type Command struct {
	ID ID

	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/temp <0-1>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name     string
	Required bool
	Type     ArgType
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeModel                 // Model name from the catalog
	ArgTypeFile                  // Chat file path (.json)
	ArgTypeChat                  // Saved chat ID
	ArgTypeAnyFile               // Any file path
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias, case-insensitively.
func (r *Registry) Get(name string) *Command {
	name = strings.ToLower(name)
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Help renders the command list grouped by category.
func (r *Registry) Help() string {
	order := []string{"Conversation", "Generation", "Models", "Files"}
	byCat := make(map[string][]*Command)
	for _, cmd := range r.All() {
		byCat[cmd.Category] = append(byCat[cmd.Category], cmd)
	}

	var b strings.Builder
	for _, cat := range order {
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		b.WriteString(cat + ":\n")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			b.WriteString("  " + padRight(usage, 22) + cmd.Description + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s + " "
	}
	return s + strings.Repeat(" ", n-len(s))
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		ID:          CmdHelp,
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
		Category:    "Conversation",
	})
	r.Register(&Command{
		ID:          CmdQuit,
		Name:        "/quit",
		Aliases:     []string{"/exit", "/q"},
		Description: "Exit the chat",
		Category:    "Conversation",
	})
	r.Register(&Command{
		ID:          CmdClear,
		Name:        "/clear",
		Aliases:     []string{"/c"},
		Description: "Clear conversation history",
		Category:    "Conversation",
	})
	r.Register(&Command{
		ID:          CmdCopy,
		Name:        "/copy",
		Aliases:     []string{"/y"},
		Description: "Copy the last response to the clipboard",
		Category:    "Conversation",
	})
	r.Register(&Command{
		ID:          CmdNew,
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new chat",
		Category:    "Conversation",
	})

	r.Register(&Command{
		ID:          CmdTemp,
		Name:        "/temp",
		Aliases:     []string{"/temperature"},
		Description: "Set temperature (0.0 to 1.0)",
		Usage:       "/temp <value>",
		Args:        []ArgDef{{Name: "value"}},
		Category:    "Generation",
	})
	r.Register(&Command{
		ID:          CmdTokens,
		Name:        "/tokens",
		Aliases:     []string{"/max-tokens"},
		Description: "Set the response token limit",
		Usage:       "/tokens <n>",
		Args:        []ArgDef{{Name: "n"}},
		Category:    "Generation",
	})
	r.Register(&Command{
		ID:          CmdSystem,
		Name:        "/system",
		Aliases:     []string{"/sys"},
		Description: "Set the system prompt (empty to remove)",
		Usage:       "/system [prompt]",
		Category:    "Generation",
	})

	r.Register(&Command{
		ID:          CmdModel,
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Switch to another model",
		Usage:       "/model <name>",
		Args:        []ArgDef{{Name: "name", Required: true, Type: ArgTypeModel}},
		Category:    "Models",
	})
	r.Register(&Command{
		ID:          CmdModels,
		Name:        "/models",
		Description: "List available models",
		Category:    "Models",
	})

	r.Register(&Command{
		ID:          CmdSave,
		Name:        "/save",
		Aliases:     []string{"/s"},
		Description: "Save the chat to a file",
		Usage:       "/save [path]",
		Args:        []ArgDef{{Name: "path", Type: ArgTypeFile}},
		Category:    "Files",
	})
	r.Register(&Command{
		ID:          CmdLoad,
		Name:        "/load",
		Aliases:     []string{"/l"},
		Description: "Load a chat file",
		Usage:       "/load <path>",
		Args:        []ArgDef{{Name: "path", Required: true, Type: ArgTypeFile}},
		Category:    "Files",
	})
	r.Register(&Command{
		ID:          CmdStore,
		Name:        "/store",
		Description: "Save the chat to the library",
		Usage:       "/store [title]",
		Category:    "Files",
	})
	r.Register(&Command{
		ID:          CmdChats,
		Name:        "/chats",
		Description: "List saved chats",
		Category:    "Files",
	})
	r.Register(&Command{
		ID:          CmdOpen,
		Name:        "/open",
		Description: "Open a saved chat",
		Usage:       "/open <id>",
		Args:        []ArgDef{{Name: "id", Required: true, Type: ArgTypeChat}},
		Category:    "Files",
	})
	r.Register(&Command{
		ID:          CmdAttach,
		Name:        "/attach",
		Aliases:     []string{"/a"},
		Description: "Attach files to the next message (no args lists them)",
		Usage:       "/attach [path...]",
		Args:        []ArgDef{{Name: "path", Type: ArgTypeAnyFile}},
		Category:    "Files",
	})
	r.Register(&Command{
		ID:          CmdDetach,
		Name:        "/detach",
		Description: "Drop pending attachments",
		Category:    "Files",
	})
}
