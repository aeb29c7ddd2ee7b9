package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/intent"
	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

// scriptedCompleter answers "<agent> answer" and fails on the configured call.
type scriptedCompleter struct {
	failAt int // call index to fail, -1 never
	err    error

	mu    sync.Mutex
	calls []provider.CompletionRequest
}

func newScripted() *scriptedCompleter { return &scriptedCompleter{failAt: -1} }

func (s *scriptedCompleter) Complete(_ context.Context, req *provider.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.calls)
	s.calls = append(s.calls, *req)
	if n == s.failAt {
		return "", s.err
	}
	return fmt.Sprintf("%s answer", req.Agent), nil
}

// stepClock advances one second per reading.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type recorder struct {
	mu        sync.Mutex
	snapshots []WorkflowProgress
}

func (r *recorder) OnProgress(p WorkflowProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, p)
}

func newTestOrchestrator(c CompletionProvider) *Orchestrator {
	return New(nil, c, zap.NewNop(), WithClock(stepClock()))
}

func TestExecuteSingleStepIsVerbatim(t *testing.T) {
	o := newTestOrchestrator(newScripted())
	resp, err := o.Execute(context.Background(), &Request{Message: "hello there"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Analysis.Intent != intent.General {
		t.Fatalf("intent = %q, want general", resp.Analysis.Intent)
	}
	if resp.FinalResponse != "tutor answer" {
		t.Errorf("final response = %q, want raw tutor text", resp.FinalResponse)
	}
	if !resp.Success {
		t.Error("success = false")
	}
}

func TestExecuteSynthesizesSections(t *testing.T) {
	o := newTestOrchestrator(newScripted())
	resp, err := o.Execute(context.Background(), &Request{Message: "Build a simple todo app"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := resp.FinalResponse

	if !strings.HasPrefix(out, "# 🚀 Project Build\n\n") {
		t.Errorf("missing title: %q", out[:40])
	}
	wantSections := []string{
		"## 1. 🏗️ Architect - Design system architecture",
		"## 2. 💻 Coder - Generate production-ready code",
		"## 3. 🔍 Reviewer - Review and optimize code",
	}
	last := -1
	for _, s := range wantSections {
		i := strings.Index(out, s)
		if i < 0 {
			t.Fatalf("missing section %q", s)
		}
		if i < last {
			t.Errorf("section %q out of order", s)
		}
		last = i
	}
	if got := strings.Count(out, "\n## "); got != 5 {
		t.Errorf("got %d level-2 headings, want 3 sections + summary + next steps", got)
	}
	if !strings.Contains(out, "✅ All 3 agents completed successfully in 3s") {
		t.Errorf("summary line missing: %q", out)
	}
	if !strings.Contains(out, "## Next Steps\n\n1. Review the generated code and architecture\n") {
		t.Errorf("next steps missing")
	}
	if resp.Metadata.TokensUsed != (16+12+15)/4 {
		t.Errorf("tokens = %d, want %d", resp.Metadata.TokensUsed, (16+12+15)/4)
	}
	if len(resp.Workflow.Results) != 3 {
		t.Errorf("final snapshot has %d results, want 3", len(resp.Workflow.Results))
	}
	if resp.Workflow.Status != StatusCompleted || resp.Workflow.Message != msgCompleted {
		t.Errorf("final snapshot = %s / %q", resp.Workflow.Status, resp.Workflow.Message)
	}
}

func TestExecuteProgressSequence(t *testing.T) {
	rec := &recorder{}
	o := newTestOrchestrator(newScripted())
	if _, err := o.Execute(context.Background(), &Request{Message: "Teach me React", Listener: rec}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.snapshots) != 4 {
		t.Fatalf("got %d snapshots, want 4", len(rec.snapshots))
	}
	first := rec.snapshots[0]
	if first.Status != StatusPending || first.Message != msgAnalyzing || first.CurrentAgent != agent.Curriculum || first.TotalSteps != 2 {
		t.Errorf("first snapshot = %+v", first)
	}
	if got := rec.snapshots[1].Message; got != "🎓 Curriculum: Design personalized learning path..." {
		t.Errorf("step 0 message = %q", got)
	}
	second := rec.snapshots[2]
	if second.Status != StatusRunning || second.CurrentStep != 1 || len(second.Results) != 1 {
		t.Errorf("step 1 snapshot = %+v", second)
	}
	if rec.snapshots[3].Status != StatusCompleted {
		t.Errorf("last status = %s, want completed", rec.snapshots[3].Status)
	}
}

func TestExecuteListenerGetsCopies(t *testing.T) {
	var first *WorkflowProgress
	l := ListenerFunc(func(p WorkflowProgress) {
		if p.Status == StatusRunning && p.CurrentStep == 1 {
			first = &p
			p.Results[0].Response = "tampered"
		}
	})
	o := newTestOrchestrator(newScripted())
	resp, err := o.Execute(context.Background(), &Request{Message: "Teach me React", Listener: l})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == nil {
		t.Fatal("listener never saw step 1")
	}
	if resp.Workflow.Results[0].Response != "curriculum answer" {
		t.Errorf("listener mutation leaked: %q", resp.Workflow.Results[0].Response)
	}
}

func TestExecutePassesDependencyContext(t *testing.T) {
	c := newScripted()
	o := newTestOrchestrator(c)
	_, err := o.Execute(context.Background(), &Request{
		Message: "Teach me React",
		Context: "I know HTML",
		History: []provider.Message{{Role: "user", Content: "hi"}},
		Mode:    provider.ModeHybrid,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(c.calls))
	}
	if c.calls[0].Context != "I know HTML" {
		t.Errorf("step 0 context = %q", c.calls[0].Context)
	}
	want := "I know HTML\n\n--- Previous Agent Results ---\n\n🎓 CURRICULUM (Design personalized learning path):\ncurriculum answer\n\n--- End of Previous Results ---\n"
	if c.calls[1].Context != want {
		t.Errorf("step 1 context = %q, want %q", c.calls[1].Context, want)
	}
	for _, call := range c.calls {
		if call.Message != "Teach me React" || call.Mode != provider.ModeHybrid || len(call.History) != 1 {
			t.Errorf("call = %+v", call)
		}
	}
}

func TestExecuteFailureAtStepK(t *testing.T) {
	boom := errors.New("upstream quota")
	for k := 0; k < 3; k++ {
		c := newScripted()
		c.failAt, c.err = k, boom
		rec := &recorder{}
		o := newTestOrchestrator(c)

		resp, err := o.Execute(context.Background(), &Request{Message: "Build a simple todo app", Listener: rec})
		if resp != nil {
			t.Errorf("k=%d: got a response on failure", k)
		}
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			t.Fatalf("k=%d: got %v, want *StepError", k, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("k=%d: cause not wrapped", k)
		}
		if stepErr.Step != k {
			t.Errorf("k=%d: step = %d", k, stepErr.Step)
		}
		if len(stepErr.Progress.Results) != k {
			t.Errorf("k=%d: got %d results, want %d", k, len(stepErr.Progress.Results), k)
		}
		wantMsg := fmt.Sprintf("failed to execute %s: upstream quota", stepErr.Agent)
		if err.Error() != wantMsg {
			t.Errorf("k=%d: error = %q, want %q", k, err.Error(), wantMsg)
		}
		last := rec.snapshots[len(rec.snapshots)-1]
		if last.Status != StatusError {
			t.Errorf("k=%d: last status = %s, want error", k, last.Status)
		}
		if len(c.calls) != k+1 {
			t.Errorf("k=%d: got %d provider calls, want %d", k, len(c.calls), k+1)
		}
	}
}

func TestExecuteConcurrentIsolation(t *testing.T) {
	o := New(nil, newScripted(), zap.NewNop())
	inputs := []string{"Teach me React", "Build a simple todo app", "hello", "review my code", "plan the architecture"}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		in := inputs[i%len(inputs)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := o.Execute(context.Background(), &Request{Message: in})
			if err != nil {
				errs <- err
				return
			}
			if got, want := len(resp.Workflow.Results), len(resp.Analysis.Workflow); got != want {
				errs <- fmt.Errorf("%q: %d results for %d steps", in, got, want)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestBuildContextSkipsUnresolvable(t *testing.T) {
	results := []AgentResult{{Agent: agent.Architect, Action: "Design", Response: "plan"}}
	got := buildContext("", results, []int{0, 5, -1})
	if strings.Count(got, "ARCHITECT") != 1 {
		t.Errorf("context = %q", got)
	}
	if buildContext("base", results, nil) != "base" {
		t.Error("no dependencies must leave context unchanged")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "0s",
		999 * time.Millisecond:  "0s",
		59 * time.Second:        "59s",
		60 * time.Second:        "1m 0s",
		125*time.Second + 300e6: "2m 5s",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestSynthesizeEdgeCases(t *testing.T) {
	a := &intent.Analysis{Intent: intent.General}
	if got := synthesize(nil, a); got != noResults {
		t.Errorf("got %q, want %q", got, noResults)
	}
	two := []AgentResult{{Agent: agent.Tutor, Response: "a"}, {Agent: agent.Coder, Response: "b"}}
	if strings.Contains(synthesize(two, a), "Next Steps") {
		t.Error("general intent must not get next steps")
	}
}

func TestOrchestrateDefaults(t *testing.T) {
	c := newScripted()
	var seen int
	resp, err := Orchestrate(context.Background(), c, "Teach me React", Options{
		OnProgress: func(WorkflowProgress) { seen++ },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.calls[0].Mode != provider.ModeOnline {
		t.Errorf("mode = %q, want online", c.calls[0].Mode)
	}
	if seen != 4 {
		t.Errorf("got %d progress calls, want 4", seen)
	}
	if len(resp.Metadata.AgentsUsed) != 2 {
		t.Errorf("agents used = %v", resp.Metadata.AgentsUsed)
	}
}
