// Package orchestrator runs the agent workflow chosen by the intent analyzer
// and merges the agents' answers into one response.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nidhogg/nuka-academy/internal/intent"
	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

const (
	msgAnalyzing = "Analyzing your request..."
	msgCompleted = "All agents completed successfully!"
)

// Orchestrator executes analyzed workflows step by step. It holds no
// per-request state and may be shared across goroutines.
type Orchestrator struct {
	analyzer  *intent.Analyzer
	completer CompletionProvider
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. A nil analyzer uses the built-in tables.
func New(analyzer *intent.Analyzer, completer CompletionProvider, logger *zap.Logger, opts ...Option) *Orchestrator {
	if analyzer == nil {
		analyzer = intent.Default()
	}
	o := &Orchestrator{
		analyzer:  analyzer,
		completer: completer,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyzer returns the analyzer used to plan workflows.
func (o *Orchestrator) Analyzer() *intent.Analyzer { return o.analyzer }

// Execute analyzes req.Message, runs every workflow step in order and
// synthesizes the final answer. On failure it emits one error snapshot and
// returns a *StepError.
func (o *Orchestrator) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := o.now()
	analysis := o.analyzer.Analyze(req.Message, req.Context)

	progress := &WorkflowProgress{
		TotalSteps: len(analysis.Workflow),
		Status:     StatusPending,
		Message:    msgAnalyzing,
	}
	if len(analysis.Workflow) > 0 {
		progress.CurrentAgent = analysis.Workflow[0].Agent
	}
	emit(req.Listener, progress)

	o.logger.Info("executing workflow",
		zap.String("intent", string(analysis.Intent)),
		zap.String("complexity", string(analysis.Complexity)),
		zap.Float64("confidence", analysis.Confidence),
		zap.Int("steps", len(analysis.Workflow)))

	results := make([]AgentResult, 0, len(analysis.Workflow))
	for i, step := range analysis.Workflow {
		progress.CurrentStep = i
		progress.CurrentAgent = step.Agent
		progress.Status = StatusRunning
		progress.Message = fmt.Sprintf("%s %s: %s...", step.Agent.Emoji(), step.Agent.DisplayName(), step.Action)
		emit(req.Listener, progress)

		stepStart := o.now()
		text, err := o.completer.Complete(ctx, &provider.CompletionRequest{
			Agent:   step.Agent,
			Message: req.Message,
			Context: buildContext(req.Context, results, step.Dependencies),
			History: req.History,
			Mode:    req.Mode,
		})
		if err != nil {
			progress.Status = StatusError
			progress.Message = fmt.Sprintf("%s %s failed: %v", step.Agent.Emoji(), step.Agent.DisplayName(), err)
			emit(req.Listener, progress)
			o.logger.Error("workflow step failed",
				zap.Int("step", i),
				zap.String("agent", string(step.Agent)),
				zap.Error(err))
			return nil, &StepError{Agent: step.Agent, Step: i, Progress: progress.Clone(), Err: err}
		}

		done := o.now()
		results = append(results, AgentResult{
			Agent:      step.Agent,
			Action:     step.Action,
			Response:   text,
			DurationMs: done.Sub(stepStart).Milliseconds(),
			Timestamp:  done,
		})
		progress.Results = append([]AgentResult(nil), results...)
	}

	final := synthesize(results, analysis)

	progress.Status = StatusCompleted
	progress.Message = msgCompleted
	emit(req.Listener, progress)

	total := o.now().Sub(start)
	o.logger.Info("workflow completed",
		zap.String("intent", string(analysis.Intent)),
		zap.Int("agents", len(results)),
		zap.Duration("duration", total))

	return &Response{
		Success:       true,
		Analysis:      analysis,
		Workflow:      progress.Clone(),
		FinalResponse: final,
		Metadata: Metadata{
			TotalDurationMs: total.Milliseconds(),
			AgentsUsed:      analysis.Agents,
			TokensUsed:      estimateTokens(results),
		},
	}, nil
}

func emit(l ProgressListener, p *WorkflowProgress) {
	if l != nil {
		l.OnProgress(p.Clone())
	}
}

// buildContext appends the responses of the step's dependencies to the
// caller's context. Indices without a result are skipped.
func buildContext(base string, results []AgentResult, deps []int) string {
	if len(deps) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n--- Previous Agent Results ---\n")
	for _, d := range deps {
		if d < 0 || d >= len(results) {
			continue
		}
		r := results[d]
		fmt.Fprintf(&sb, "\n%s %s (%s):\n%s\n", r.Agent.Emoji(), strings.ToUpper(string(r.Agent)), r.Action, r.Response)
	}
	sb.WriteString("\n--- End of Previous Results ---\n")
	return sb.String()
}

func estimateTokens(results []AgentResult) int {
	n := 0
	for _, r := range results {
		n += utf8.RuneCountInString(r.Response)
	}
	return n / 4
}
