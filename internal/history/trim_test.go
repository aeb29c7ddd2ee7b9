package history

import (
	"strings"
	"testing"

	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

func msg(role string, chars int) provider.Message {
	return provider.Message{Role: role, Content: strings.Repeat("a", chars)}
}

func TestFitKeepsAllWhenUnderBudget(t *testing.T) {
	tr := NewTrimmer(Config{MaxTokens: 1000, ReserveRatio: 0.5}, zap.NewNop())
	in := []provider.Message{msg("user", 40), msg("assistant", 40)}
	got := tr.Fit(in)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	got[0].Content = "changed"
	if in[0].Content == "changed" {
		t.Error("Fit must not alias its input")
	}
}

func TestFitDropsOldestFirst(t *testing.T) {
	// budget 50 tokens = 200 chars
	tr := NewTrimmer(Config{MaxTokens: 100, ReserveRatio: 0.5}, zap.NewNop())
	in := []provider.Message{
		{Role: "user", Content: "oldest " + strings.Repeat("x", 100)},
		msg("assistant", 100),
		msg("user", 100),
	}
	got := tr.Fit(in)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if strings.HasPrefix(got[0].Content, "oldest") {
		t.Error("oldest message should have been dropped")
	}
	if got[1].Role != "user" {
		t.Errorf("last role = %q, want user", got[1].Role)
	}
}

func TestFitMaxMessages(t *testing.T) {
	tr := NewTrimmer(Config{MaxTokens: 100000, ReserveRatio: 0.1, MaxMessages: 3}, zap.NewNop())
	in := make([]provider.Message, 10)
	for i := range in {
		in[i] = msg("user", 4)
	}
	if got := tr.Fit(in); len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
}

func TestFitEmpty(t *testing.T) {
	tr := NewTrimmer(DefaultConfig(), zap.NewNop())
	if got := tr.Fit(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestNewTrimmerDefaults(t *testing.T) {
	tr := NewTrimmer(Config{ReserveRatio: 2}, zap.NewNop())
	if got, want := tr.Budget(), 8000; got != want {
		t.Errorf("budget = %d, want %d", got, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
	if got := EstimateTokens("日本語の"); got != 1 {
		t.Errorf("runes should count once: got %d, want 1", got)
	}
}
