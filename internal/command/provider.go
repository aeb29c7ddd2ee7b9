package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/provider"
)

// ProviderSwitcher lists providers and changes the default one.
type ProviderSwitcher interface {
	ListProviders() []provider.Provider
	GetProvider(id string) (provider.Provider, bool)
	DefaultID() string
	SetDefault(providerID string)
}

// RegisterProviderCommands registers /providers.
func RegisterProviderCommands(reg *Registry, switcher ProviderSwitcher) {
	reg.Register(providersCommand(switcher))
}

func providersCommand(switcher ProviderSwitcher) *Command {
	return &Command{
		Name:        "providers",
		Description: "List LLM providers or switch the default",
		Usage:       "/providers [default <provider_id>]",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			fields := strings.Fields(args)
			if len(fields) == 2 && fields[0] == "default" {
				id := fields[1]
				if _, ok := switcher.GetProvider(id); !ok {
					return &CommandResult{Content: fmt.Sprintf("Unknown provider %q.", id)}, nil
				}
				switcher.SetDefault(id)
				return &CommandResult{Content: fmt.Sprintf("Default provider switched to %q.", id)}, nil
			}
			if len(fields) > 0 {
				return &CommandResult{Content: "Usage: /providers [default <provider_id>]"}, nil
			}

			providers := switcher.ListProviders()
			if len(providers) == 0 {
				return &CommandResult{Content: "No providers configured."}, nil
			}
			def := switcher.DefaultID()
			var sb strings.Builder
			sb.WriteString("Providers:\n")
			for _, p := range providers {
				marker := "  "
				if p.ID() == def {
					marker = "* "
				}
				fmt.Fprintf(&sb, "%s%s (%s)\n", marker, p.Name(), p.ID())
			}
			return &CommandResult{Content: sb.String()}, nil
		},
	}
}
