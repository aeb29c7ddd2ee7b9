package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

// ErrRunnerClosed is returned by Submit after Shutdown.
var ErrRunnerClosed = errors.New("runner is shut down")

// RunRecorder persists the lifecycle of background runs.
type RunRecorder interface {
	RunStarted(ctx context.Context, id, message, reqContext string, mode provider.Mode) error
	RunCompleted(ctx context.Context, id string, resp *Response) error
	RunFailed(ctx context.Context, id string, err error) error
}

// RunState is the in-memory view of a run still executing.
type RunState struct {
	ID        string         `json:"id"`
	Status    WorkflowStatus `json:"status"`
	Step      int            `json:"step"`
	StartedAt time.Time      `json:"started_at"`
}

// Runner executes requests in the background on a bounded pool.
type Runner struct {
	orch     *Orchestrator
	bus      *ProgressBus // optional
	recorder RunRecorder  // optional
	pool     chan struct{}
	logger   *zap.Logger

	mu      sync.RWMutex
	running map[string]*RunState
	closed  bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner allowing poolSize concurrent executions.
func NewRunner(orch *Orchestrator, bus *ProgressBus, recorder RunRecorder, poolSize int, logger *zap.Logger) *Runner {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Runner{
		orch:     orch,
		bus:      bus,
		recorder: recorder,
		pool:     make(chan struct{}, poolSize),
		logger:   logger,
		running:  make(map[string]*RunState),
	}
}

// Submit records a new run and starts it in the background. The run is
// detached from ctx cancellation so it outlives the submitting request.
func (r *Runner) Submit(ctx context.Context, req *Request) (string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRunnerClosed
	}
	id := uuid.New().String()
	state := &RunState{ID: id, Status: StatusPending, StartedAt: time.Now()}
	r.running[id] = state
	r.wg.Add(1)
	r.mu.Unlock()

	if r.recorder != nil {
		if err := r.recorder.RunStarted(ctx, id, req.Message, req.Context, req.Mode); err != nil {
			r.finish(id)
			return "", err
		}
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer r.finish(id)
		r.pool <- struct{}{}
		defer func() { <-r.pool }()
		r.execute(runCtx, id, req)
	}()
	return id, nil
}

func (r *Runner) execute(ctx context.Context, id string, req *Request) {
	listeners := Listeners{ListenerFunc(func(p WorkflowProgress) { r.track(id, p) })}
	if r.bus != nil {
		listeners = append(listeners, r.bus.Listener(ctx, id))
	}
	if req.Listener != nil {
		listeners = append(listeners, req.Listener)
	}
	run := *req
	run.Listener = listeners

	r.logger.Info("run started", zap.String("run", id))
	resp, err := r.orch.Execute(ctx, &run)
	if err != nil {
		r.logger.Warn("run failed", zap.String("run", id), zap.Error(err))
		if r.recorder != nil {
			if rerr := r.recorder.RunFailed(ctx, id, err); rerr != nil {
				r.logger.Error("record run failure", zap.String("run", id), zap.Error(rerr))
			}
		}
		return
	}
	if r.recorder != nil {
		if rerr := r.recorder.RunCompleted(ctx, id, resp); rerr != nil {
			r.logger.Error("record run completion", zap.String("run", id), zap.Error(rerr))
		}
	}
	r.logger.Info("run completed", zap.String("run", id),
		zap.Int64("duration_ms", resp.Metadata.TotalDurationMs))
}

func (r *Runner) track(id string, p WorkflowProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.running[id]; ok {
		s.Status = p.Status
		s.Step = p.CurrentStep
	}
}

func (r *Runner) finish(id string) {
	r.mu.Lock()
	delete(r.running, id)
	r.mu.Unlock()
	r.wg.Done()
}

// Running returns the runs currently in flight, oldest first.
func (r *Runner) Running() []RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RunState, 0, len(r.running))
	for _, s := range r.running {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Shutdown stops accepting runs and waits for in-flight ones or ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
