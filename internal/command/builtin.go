package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/makers-assistant/internal/chatbot"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
)

// Assistant is the slice of the orchestrator the builtins need.
type Assistant interface {
	Status() chatbot.Status
	Sync(ctx context.Context) chatbot.SyncReport
	Search(ctx context.Context, query string, topK int) []vectorstore.Match
}

// StatusProvider provides adapter connection status.
type StatusProvider interface {
	StatusAll() []AdapterStatus
}

// AdapterStatus describes the connection state of a platform adapter.
type AdapterStatus struct {
	Name      string
	Platform  string
	Connected bool
}

// RegisterBuiltins registers /help, /status, /sync and /search.
func RegisterBuiltins(reg *Registry, assistant Assistant, adapters StatusProvider) {
	reg.Register(helpCommand(reg))
	reg.Register(statusCommand(assistant, adapters))
	reg.Register(syncCommand(assistant))
	reg.Register(searchCommand(assistant))
}

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Aliases:     []string{"start"},
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			cmds := reg.List()
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range cmds {
				fmt.Fprintf(&b, "  /%s: %s", c.Name, c.Description)
				if len(c.Aliases) > 0 {
					fmt.Fprintf(&b, " (also /%s)", strings.Join(c.Aliases, ", /"))
				}
				b.WriteString("\n")
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			b.WriteString("Anything else is answered from the product catalog.")
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

func statusCommand(assistant Assistant, adapters StatusProvider) *Command {
	return &Command{
		Name:        "status",
		Description: "Show index readiness and backend status",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			st := assistant.Status()
			var b strings.Builder
			b.WriteString(st.Describe())
			if adapters != nil {
				if list := adapters.StatusAll(); len(list) > 0 {
					b.WriteString("\nAdapters:\n")
					for _, a := range list {
						state := "disconnected"
						if a.Connected {
							state = "connected"
						}
						fmt.Fprintf(&b, "  %s (%s): %s\n", a.Name, a.Platform, state)
					}
				}
			}
			return &CommandResult{Content: strings.TrimRight(b.String(), "\n"), Data: st}, nil
		},
	}
}

func syncCommand(assistant Assistant) *Command {
	return &Command{
		Name:        "sync",
		Aliases:     []string{"reindex"},
		Description: "Re-index the product catalog",
		Usage:       "/sync",
		Handler: func(ctx context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			r := assistant.Sync(ctx)
			if r.Err != nil {
				return &CommandResult{Content: "Catalog sync failed: " + r.Err.Error(), Data: r}, nil
			}
			content := fmt.Sprintf("Synced %d products (%d indexed, %d skipped) in %s.",
				r.Products, r.Indexed, r.Skipped, r.Duration.Round(time.Millisecond))
			if r.Degraded {
				content += " Index backend unavailable, results may be stale."
			}
			return &CommandResult{Content: content, Data: r}, nil
		},
	}
}

func searchCommand(assistant Assistant) *Command {
	return &Command{
		Name:        "search",
		Aliases:     []string{"find"},
		Description: "Show raw catalog matches for a query",
		Usage:       "/search <query>",
		Handler: func(ctx context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			if strings.TrimSpace(args) == "" {
				return &CommandResult{Content: "Usage: /search <query>"}, nil
			}
			matches := assistant.Search(ctx, args, 5)
			if len(matches) == 0 {
				return &CommandResult{Content: "No results found for: " + args}, nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Search results for %q:\n\n", args)
			for i, m := range matches {
				fmt.Fprintf(&sb, "%d. [%.2f] %s by %s ($%.2f, %s)\n",
					i+1, m.Score, m.Product.Name, m.Product.Brand, m.Product.Price, m.Product.Category)
			}
			return &CommandResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
		},
	}
}
