package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/gateway"
	"github.com/nidhogg/nuka-academy/internal/intent"
)

// AgentLister lists agent personas.
type AgentLister interface {
	List() []*agent.Persona
}

// StatusProvider reports adapter connection state.
type StatusProvider interface {
	StatusAll() []gateway.AdapterStatus
}

// SessionResetter forgets a channel's conversation.
type SessionResetter interface {
	ResetSession(ctx context.Context, platform, channelID string) error
}

// Builtins are the dependencies of the built-in commands. Commands whose
// dependency is nil are not registered.
type Builtins struct {
	Agents   AgentLister
	Analyzer *intent.Analyzer
	Status   StatusProvider
	Sessions SessionResetter
}

// RegisterBuiltins registers /help plus every built-in command whose
// dependency is available.
func RegisterBuiltins(reg *Registry, b Builtins) {
	reg.Register(helpCommand(reg))
	if b.Agents != nil {
		reg.Register(agentsCommand(b.Agents))
	}
	if b.Analyzer != nil {
		reg.Register(analyzeCommand(b.Analyzer))
		reg.Register(suggestCommand(b.Analyzer))
	}
	if b.Status != nil {
		reg.Register(statusCommand(b.Status))
	}
	if b.Sessions != nil {
		reg.Register(resetCommand(b.Sessions))
	}
}

func helpCommand(reg *Registry) *Command {
	return &Command{
		Name:        "help",
		Description: "List all available commands",
		Usage:       "/help",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range reg.List() {
				fmt.Fprintf(&b, "  /%s: %s\n", c.Name, c.Description)
				if c.Usage != "" {
					fmt.Fprintf(&b, "    Usage: %s\n", c.Usage)
				}
			}
			b.WriteString("\nMention @<agent> to ask a single agent, or just describe what you want.")
			return &CommandResult{Content: b.String()}, nil
		},
	}
}

func agentsCommand(lister AgentLister) *Command {
	return &Command{
		Name:        "agents",
		Description: "List the academy's agents",
		Usage:       "/agents",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			personas := lister.List()
			if len(personas) == 0 {
				return &CommandResult{Content: "No agents registered."}, nil
			}
			var b strings.Builder
			b.WriteString("Agents:\n")
			for _, p := range personas {
				fmt.Fprintf(&b, "  %s %s (@%s): %s\n", p.Emoji, p.Name, p.ID, p.Role)
			}
			return &CommandResult{Content: b.String(), Data: personas}, nil
		},
	}
}

func analyzeCommand(an *intent.Analyzer) *Command {
	return &Command{
		Name:        "analyze",
		Description: "Show how a request would be routed",
		Usage:       "/analyze <request>",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			if args == "" {
				return &CommandResult{Content: "Usage: /analyze <request>"}, nil
			}
			a := an.Analyze(args, "")
			return &CommandResult{Content: FormatAnalysis(a), Data: a}, nil
		},
	}
}

// FormatAnalysis renders an analysis as chat text.
func FormatAnalysis(a *intent.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s (%.0f%% confidence)\n", a.Intent, a.Confidence*100)
	fmt.Fprintf(&b, "Complexity: %s\n", a.Complexity)
	b.WriteString("Workflow:\n")
	for i, s := range a.Workflow {
		fmt.Fprintf(&b, "  %d. %s %s: %s (%s)\n", i+1, s.Agent.Emoji(), s.Agent.DisplayName(), s.Action, s.EstimatedTime)
	}
	if len(a.Entities.Technologies) > 0 {
		fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(a.Entities.Technologies, ", "))
	}
	if a.Entities.ProjectType != "" {
		fmt.Fprintf(&b, "Project type: %s\n", a.Entities.ProjectType)
	}
	if a.SuggestedPrompt != "" {
		fmt.Fprintf(&b, "Try: %s\n", a.SuggestedPrompt)
	}
	return b.String()
}

func suggestCommand(an *intent.Analyzer) *Command {
	return &Command{
		Name:        "suggest",
		Description: "Suggest requests to start with",
		Usage:       "/suggest [beginner|intermediate|advanced|expert]",
		Handler: func(_ context.Context, args string, _ *CommandContext) (*CommandResult, error) {
			level := intent.Beginner
			if args != "" {
				l, err := intent.ParseComplexity(args)
				if err != nil {
					return &CommandResult{Content: "Usage: /suggest [beginner|intermediate|advanced|expert]"}, nil
				}
				level = l
			}
			suggestions := an.QuickStart(level)
			var b strings.Builder
			fmt.Fprintf(&b, "Ideas for %s level:\n", level)
			for _, s := range suggestions {
				names := make([]string, len(s.Agents))
				for i, id := range s.Agents {
					names[i] = id.Emoji()
				}
				fmt.Fprintf(&b, "  • %s %s\n", s.Text, strings.Join(names, ""))
			}
			return &CommandResult{Content: b.String(), Data: suggestions}, nil
		},
	}
}

func statusCommand(provider StatusProvider) *Command {
	return &Command{
		Name:        "status",
		Description: "Show adapter connection status",
		Usage:       "/status",
		Handler: func(_ context.Context, _ string, _ *CommandContext) (*CommandResult, error) {
			adapters := provider.StatusAll()
			if len(adapters) == 0 {
				return &CommandResult{Content: "No adapters configured."}, nil
			}
			var b strings.Builder
			b.WriteString("Adapter status:\n")
			for _, a := range adapters {
				state := "disconnected"
				if a.Connected {
					state = "connected"
				}
				fmt.Fprintf(&b, "  %s: %s", a.Platform, state)
				if a.Error != "" {
					fmt.Fprintf(&b, " (%s)", a.Error)
				}
				b.WriteByte('\n')
			}
			return &CommandResult{Content: b.String(), Data: adapters}, nil
		},
	}
}

func resetCommand(sessions SessionResetter) *Command {
	return &Command{
		Name:        "reset",
		Description: "Forget this channel's conversation",
		Usage:       "/reset",
		Handler: func(ctx context.Context, _ string, cc *CommandContext) (*CommandResult, error) {
			if err := sessions.ResetSession(ctx, cc.Platform, cc.ChannelID); err != nil {
				return nil, fmt.Errorf("reset session: %w", err)
			}
			return &CommandResult{Content: "Conversation cleared."}, nil
		},
	}
}
