// Package command implements the slash commands chat users can send instead
// of a product question.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command is a slash command. Aliases resolve to the same handler and are
// not listed separately.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     CommandHandler
}

// CommandHandler runs a command with everything after its name as args.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error)

// CommandContext describes who issued a command and where.
type CommandContext struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
}

// CommandResult is the reply text plus optional structured data.
type CommandResult struct {
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// Registry maps command names and aliases to commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	aliases  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

// Register adds cmd, replacing any command or alias of the same name.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(cmd.Name)
	delete(r.aliases, name)
	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		r.aliases[strings.ToLower(a)] = name
	}
}

// Dispatch runs the command named in input ("/name args"). A "@bot" suffix
// on the name, as chat clients add in group channels, is ignored. Unknown
// names get a reply, not an error.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (*CommandResult, error) {
	name, args := split(input)

	r.mu.RLock()
	cmd := r.lookup(name)
	var hint []string
	if cmd == nil {
		hint = r.similar(name)
	}
	r.mu.RUnlock()

	if cmd == nil {
		msg := fmt.Sprintf("Unknown command: /%s.", name)
		if len(hint) > 0 {
			msg += " Did you mean /" + strings.Join(hint, ", /") + "?"
		}
		return &CommandResult{Content: msg + " Type /help for available commands."}, nil
	}
	return cmd.Handler(ctx, args, cc)
}

func split(input string) (name, args string) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, args, _ = strings.Cut(input, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func (r *Registry) lookup(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if target, ok := r.aliases[name]; ok {
		return r.commands[target]
	}
	return nil
}

// similar returns command names sharing a prefix with name.
func (r *Registry) similar(name string) []string {
	if name == "" {
		return nil
	}
	var out []string
	for n := range r.commands {
		if strings.HasPrefix(n, name) || strings.HasPrefix(name, n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// List returns the registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
