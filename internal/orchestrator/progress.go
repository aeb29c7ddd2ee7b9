package orchestrator

// ProgressListener receives workflow snapshots in order, on the executing
// goroutine. Each call gets its own copy.
type ProgressListener interface {
	OnProgress(WorkflowProgress)
}

// ListenerFunc adapts a function to ProgressListener.
type ListenerFunc func(WorkflowProgress)

func (f ListenerFunc) OnProgress(p WorkflowProgress) { f(p) }

// Listeners fans one snapshot out to several listeners.
type Listeners []ProgressListener

func (ls Listeners) OnProgress(p WorkflowProgress) {
	for _, l := range ls {
		if l != nil {
			l.OnProgress(p.Clone())
		}
	}
}
