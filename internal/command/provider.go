package command

import (
	"context"
	"fmt"
	"strings"
)

// ProviderSwitcher manages the default completion provider.
type ProviderSwitcher interface {
	SetDefault(providerID string) bool
	ListProviders() []ProviderInfo
}

// ProviderInfo holds basic provider info for command output.
type ProviderInfo struct {
	ID        string
	Name      string
	Model     string
	IsDefault bool
}

// RegisterProviderCommands registers /providers and /switch_provider.
func RegisterProviderCommands(reg *Registry, switcher ProviderSwitcher) {
	reg.Register(&Command{
		Name:        "providers",
		Description: "List completion providers in fallback order",
		Usage:       "/providers",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			return &CommandResult{Content: listProviders(switcher)}, nil
		},
	})
	reg.Register(switchProviderCommand(switcher))
}

func listProviders(switcher ProviderSwitcher) string {
	providers := switcher.ListProviders()
	if len(providers) == 0 {
		return "No completion providers configured; answers come from templates."
	}
	var sb strings.Builder
	sb.WriteString("Completion providers:\n")
	for _, p := range providers {
		marker := "  "
		if p.IsDefault {
			marker = "* "
		}
		fmt.Fprintf(&sb, "%s%s (%s) [%s]\n", marker, p.Name, p.ID, p.Model)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func switchProviderCommand(switcher ProviderSwitcher) *Command {
	return &Command{
		Name:        "switch_provider",
		Description: "Switch the default completion provider",
		Usage:       "/switch_provider <provider_id>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			id := strings.TrimSpace(args)
			if id == "" {
				return &CommandResult{Content: listProviders(switcher) + "\n\nUsage: /switch_provider <provider_id>"}, nil
			}
			if !switcher.SetDefault(id) {
				return &CommandResult{Content: fmt.Sprintf("Unknown provider %q.", id)}, nil
			}
			return &CommandResult{
				Content: fmt.Sprintf("Default provider switched to %q.", id),
			}, nil
		},
	}
}
