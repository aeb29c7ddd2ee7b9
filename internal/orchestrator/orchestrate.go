package orchestrator

import (
	"context"

	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

// Options configures a one-off Orchestrate call.
type Options struct {
	Context    string
	History    []provider.Message
	Mode       provider.Mode
	OnProgress func(WorkflowProgress)
	Logger     *zap.Logger
}

// Orchestrate runs message through a fresh orchestrator with the built-in
// analyzer tables. Mode defaults to online.
func Orchestrate(ctx context.Context, completer CompletionProvider, message string, opts Options) (*Response, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := opts.Mode
	if mode == "" {
		mode = provider.ModeOnline
	}
	req := &Request{
		Message: message,
		Context: opts.Context,
		History: opts.History,
		Mode:    mode,
	}
	if opts.OnProgress != nil {
		req.Listener = ListenerFunc(opts.OnProgress)
	}
	return New(nil, completer, logger).Execute(ctx, req)
}
