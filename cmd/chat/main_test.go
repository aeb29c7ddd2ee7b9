package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orchestrate/stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprint(w, e)
		}
	}))
}

func TestStreamOrchestratePrintsProgress(t *testing.T) {
	srv := sseServer(t,
		"event: progress\ndata: {\"current_step\":0,\"total_steps\":2,\"status\":\"running\",\"message\":\"🎓 Curriculum is working...\"}\n\n",
		"event: result\ndata: {\"success\":true,\"final_response\":\"done\",\"metadata\":{\"agents_used\":[\"curriculum\",\"tutor\"]}}\n\n",
	)
	defer srv.Close()
	serverURL = srv.URL

	var out bytes.Buffer
	got, err := streamOrchestrate(&out, "teach me", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "done" {
		t.Errorf("got %q, want %q", got, "done")
	}
	if !strings.Contains(out.String(), "[1/2]") || !strings.Contains(out.String(), "Curriculum is working") {
		t.Errorf("progress not printed: %q", out.String())
	}
}

func TestStreamOrchestrateError(t *testing.T) {
	srv := sseServer(t, "event: error\ndata: {\"success\":false,\"error\":\"tutor failed\"}\n\n")
	defer srv.Close()
	serverURL = srv.URL

	_, err := streamOrchestrate(&bytes.Buffer{}, "teach me", nil)
	if err == nil || err.Error() != "tutor failed" {
		t.Errorf("got %v, want tutor failed", err)
	}
}

func TestInteractiveKeepsHistory(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		bodies = append(bodies, buf.String())
		fmt.Fprint(w, "event: result\ndata: {\"final_response\":\"ok\"}\n\n")
	}))
	defer srv.Close()
	serverURL = srv.URL
	mode = ""

	var out bytes.Buffer
	if err := interactive(strings.NewReader("first\nsecond\nexit\n"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("got %d requests, want 2", len(bodies))
	}
	if !strings.Contains(bodies[1], `"content":"first"`) {
		t.Errorf("second request missing history: %s", bodies[1])
	}
	if !strings.Contains(out.String(), "Bye!") {
		t.Errorf("output = %q", out.String())
	}
}

func TestInteractiveCapsHistoryAtMaxTurns(t *testing.T) {
	var last []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		last = buf.Bytes()
		fmt.Fprint(w, "event: result\ndata: {\"final_response\":\"ok\"}\n\n")
	}))
	defer srv.Close()
	serverURL = srv.URL
	mode = ""

	var input strings.Builder
	for i := 0; i < maxTurns+5; i++ {
		fmt.Fprintf(&input, "question %d\n", i)
	}
	if err := interactive(strings.NewReader(input.String()+"exit\n"), &bytes.Buffer{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		History []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"history"`
	}
	if err := json.Unmarshal(last, &body); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if got, want := len(body.History), 2*maxTurns; got != want {
		t.Fatalf("got %d history messages, want %d", got, want)
	}
	if body.History[0].Content != "question 4" {
		t.Errorf("oldest kept turn = %q, want question 4", body.History[0].Content)
	}
}
