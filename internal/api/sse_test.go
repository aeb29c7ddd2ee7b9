package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// brokenStream accepts headers but fails every body write, like a client
// that disconnected mid-stream.
type brokenStream struct {
	header http.Header
}

func (b *brokenStream) Header() http.Header       { return b.header }
func (b *brokenStream) WriteHeader(int)           {}
func (b *brokenStream) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }
func (b *brokenStream) Flush()                    {}

func TestOrchestrateStreamLogsFailedWrites(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	for _, tc := range []struct {
		name  string
		c     *scriptedCompleter
		event string
	}{
		{"result", &scriptedCompleter{}, "result"},
		{"error", &scriptedCompleter{fail: map[agent.ID]bool{agent.Tutor: true}}, "error"},
	} {
		logger := zap.New(core)
		h := NewHandler(Deps{
			Orchestrator: orchestrator.New(nil, tc.c, logger),
			Completer:    tc.c,
			Logger:       logger,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/orchestrate/stream", strings.NewReader(`{"message":"hello there"}`))
		h.orchestrateStream(&brokenStream{header: http.Header{}}, req)

		found := false
		for _, e := range logs.FilterMessage("stream write failed").All() {
			if e.ContextMap()["event"] == tc.event {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: failed %q write was not logged", tc.name, tc.event)
		}
	}
}
