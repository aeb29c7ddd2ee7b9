// Package history bounds the conversation history sent with each agent turn.
package history

import (
	"unicode/utf8"

	"github.com/nidhogg/nuka-academy/internal/provider"
	"go.uber.org/zap"
)

// Config holds history window settings.
type Config struct {
	MaxTokens    int     // model context window
	ReserveRatio float64 // fraction kept free for prompt and response
	MaxMessages  int     // hard cap on messages kept, 0 = no cap
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:    16000,
		ReserveRatio: 0.5,
		MaxMessages:  20,
	}
}

// Trimmer drops the oldest history messages until the rest fit the budget.
type Trimmer struct {
	config Config
	logger *zap.Logger
}

// NewTrimmer creates a Trimmer, replacing invalid settings with defaults.
func NewTrimmer(cfg Config, logger *zap.Logger) *Trimmer {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.ReserveRatio <= 0 || cfg.ReserveRatio >= 1 {
		cfg.ReserveRatio = def.ReserveRatio
	}
	if cfg.MaxMessages < 0 {
		cfg.MaxMessages = 0
	}
	return &Trimmer{config: cfg, logger: logger}
}

// Budget returns the token budget available to history.
func (t *Trimmer) Budget() int {
	return int(float64(t.config.MaxTokens) * (1 - t.config.ReserveRatio))
}

// EstimateTokens approximates tokens as characters / 4.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}

// Fit keeps the most recent messages whose estimated size fits the budget.
// The result preserves the original order and never aliases the input.
func (t *Trimmer) Fit(msgs []provider.Message) []provider.Message {
	if len(msgs) == 0 {
		return nil
	}
	budget := t.Budget()
	start := len(msgs)
	used := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if t.config.MaxMessages > 0 && len(msgs)-i > t.config.MaxMessages {
			break
		}
		cost := EstimateTokens(msgs[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	if start > 0 {
		t.logger.Debug("history trimmed",
			zap.Int("dropped", start),
			zap.Int("kept", len(msgs)-start),
			zap.Int("tokens", used))
	}
	return append([]provider.Message(nil), msgs[start:]...)
}
