package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/intent"
	"github.com/nidhogg/nuka-academy/internal/provider"
)

// CompletionProvider produces one agent's response for one workflow step.
type CompletionProvider interface {
	Complete(ctx context.Context, req *provider.CompletionRequest) (string, error)
}

// WorkflowStatus tracks execution state.
type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "pending"
	StatusRunning   WorkflowStatus = "running"
	StatusCompleted WorkflowStatus = "completed"
	StatusError     WorkflowStatus = "error"
)

// Terminal reports whether no further snapshots follow this status.
func (s WorkflowStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// AgentResult is the output of one completed workflow step.
type AgentResult struct {
	Agent      agent.ID  `json:"agent"`
	Action     string    `json:"action"`
	Response   string    `json:"response"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// WorkflowProgress is a snapshot of an execution.
type WorkflowProgress struct {
	CurrentStep  int            `json:"current_step"`
	TotalSteps   int            `json:"total_steps"`
	CurrentAgent agent.ID       `json:"current_agent"`
	Status       WorkflowStatus `json:"status"`
	Message      string         `json:"message"`
	Results      []AgentResult  `json:"results"`
}

// Clone returns a deep copy safe to hand to listeners.
func (p *WorkflowProgress) Clone() WorkflowProgress {
	cp := *p
	cp.Results = append([]AgentResult(nil), p.Results...)
	return cp
}

// Metadata summarises an execution.
type Metadata struct {
	TotalDurationMs int64      `json:"total_duration_ms"`
	AgentsUsed      []agent.ID `json:"agents_used"`
	TokensUsed      int        `json:"tokens_used"`
}

// Response is the result of a successful execution.
type Response struct {
	Success       bool             `json:"success"`
	Analysis      *intent.Analysis `json:"analysis"`
	Workflow      WorkflowProgress `json:"workflow"`
	FinalResponse string           `json:"final_response"`
	Metadata      Metadata         `json:"metadata"`
}

// Request is one user request to orchestrate.
type Request struct {
	Message  string
	Context  string
	History  []provider.Message
	Mode     provider.Mode
	Listener ProgressListener
}

// StepError reports the workflow step whose agent failed.
type StepError struct {
	Agent    agent.ID
	Step     int
	Progress WorkflowProgress
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("failed to execute %s: %v", e.Agent, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
