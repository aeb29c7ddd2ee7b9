package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/provider"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "academy.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("ACADEMY_TEST_KEY", "sk-live")
	path := writeConfig(t, `{
		"server": {"port": ${ACADEMY_TEST_PORT:8080}},
		"providers": [
			{"id": "openai", "type": "openai", "api_key": "${ACADEMY_TEST_KEY}", "models": ["gpt-4o-mini"], "timeout_sec": 30},
			{"id": "local", "type": "ollama", "endpoint": "${ACADEMY_TEST_OLLAMA:http://localhost:11434}"}
		],
		"routing": {"online": "openai", "offline": "local", "fallbacks": {"coder": ["local"]}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Providers[0].APIKey != "sk-live" {
		t.Errorf("api key = %q, want sk-live", cfg.Providers[0].APIKey)
	}
	if cfg.Providers[1].Endpoint != "http://localhost:11434" {
		t.Errorf("endpoint = %q", cfg.Providers[1].Endpoint)
	}
	if cfg.Server.LogLevel != "info" || cfg.Routing.Mode() != provider.ModeOnline {
		t.Errorf("defaults not applied: %+v %+v", cfg.Server, cfg.Routing)
	}
	if got := cfg.Providers[0].Provider(); got.Timeout != 30*time.Second || got.Name != "openai" {
		t.Errorf("provider config = %+v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "parse config"},
		{"bad provider type", `{"providers":[{"id":"x","type":"grpc"}]}`, "Type"},
		{"duplicate provider", `{"providers":[{"id":"x","type":"openai"},{"id":"x","type":"ollama"}]}`, "duplicate"},
		{"unknown binding", `{"providers":[{"id":"x","type":"openai"}],"routing":{"bindings":{"coder":"y"}}}`, "unknown provider \"y\""},
		{"unknown agent", `{"agents":{"wizard":{"model":"m"}}}`, "agents.wizard"},
		{"bad mode", `{"routing":{"default_mode":"satellite"}}`, "DefaultMode"},
		{"bad temperature", `{"agents":{"tutor":{"temperature":3}}}`, "Temperature"},
		{"slack without token", `{"gateway":{"slack":{"enabled":true}}}`, "BotToken"},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.body))
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestHistoryWindowDefaults(t *testing.T) {
	got := HistoryConfig{MaxTokens: 2000}.HistoryWindow()
	if got.MaxTokens != 2000 || got.MaxMessages == 0 {
		t.Errorf("history window = %+v", got)
	}
}

func TestExpandKeepsUnknownEmpty(t *testing.T) {
	if got := Expand(`"${ACADEMY_SURELY_UNSET}"`); got != `""` {
		t.Errorf("got %s, want empty string", got)
	}
}

func TestAgentOverrides(t *testing.T) {
	temp := 0.2
	cfg := &Config{Agents: map[string]AgentOverride{
		"Coder": {Model: "gpt-4o", Temperature: &temp},
	}}
	got, err := cfg.AgentOverrides()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, ok := got[agent.Coder]
	if !ok || o.Model != "gpt-4o" || *o.Temperature != 0.2 {
		t.Errorf("overrides = %+v", got)
	}

	cfg.Agents["wizrd"] = AgentOverride{Model: "m"}
	if _, err := cfg.AgentOverrides(); err == nil || !strings.Contains(err.Error(), "agents.wizrd") {
		t.Errorf("got %v, want error naming agents.wizrd", err)
	}
}
