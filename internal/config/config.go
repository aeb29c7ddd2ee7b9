package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/history"
	"github.com/nidhogg/nuka-academy/internal/provider"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig             `json:"server"`
	Providers []ProviderConfig         `json:"providers" validate:"dive"`
	Routing   RoutingConfig            `json:"routing"`
	Agents    map[string]AgentOverride `json:"agents,omitempty" validate:"dive"`
	Profiles  string                   `json:"profiles_dir"`
	History   HistoryConfig            `json:"history"`
	Database  DatabaseConfig           `json:"database"`
	Gateway   GatewayConfig            `json:"gateway"`
}

type ServerConfig struct {
	Port        int    `json:"port" validate:"gte=0,lte=65535"`
	LogLevel    string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	RunPoolSize int    `json:"run_pool_size" validate:"gte=0"`
}

type ProviderConfig struct {
	ID         string            `json:"id" validate:"required"`
	Type       string            `json:"type" validate:"required,oneof=openai anthropic ollama"`
	Name       string            `json:"name"`
	Endpoint   string            `json:"endpoint" validate:"omitempty,url"`
	APIKey     string            `json:"api_key"`
	Models     []string          `json:"models,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
	TimeoutSec int               `json:"timeout_sec" validate:"gte=0"`
}

// RoutingConfig decides which provider serves which agent and mode.
type RoutingConfig struct {
	Online      string              `json:"online"`
	Offline     string              `json:"offline"`
	DefaultMode string              `json:"default_mode" validate:"omitempty,oneof=online offline hybrid"`
	Bindings    map[string]string   `json:"bindings,omitempty"`
	Fallbacks   map[string][]string `json:"fallbacks,omitempty"`
}

// AgentOverride adjusts one built-in persona.
type AgentOverride struct {
	Model        string   `json:"model"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Instructions string   `json:"instructions"`
}

type HistoryConfig struct {
	MaxTokens   int `json:"max_tokens" validate:"gte=0"`
	MaxMessages int `json:"max_messages" validate:"gte=0"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL        string `json:"url"`
	RunTTLHour int    `json:"run_ttl_hours" validate:"gte=0"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" validate:"required_if=Enabled true"`
	AppToken string `json:"app_token" validate:"required_if=Enabled true"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" validate:"required_if=Enabled true"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Expand substitutes ${VAR} and ${VAR:default} with environment values.
func Expand(raw string) string {
	return envVarRe.ReplaceAllStringFunc(raw, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

// Load reads a JSON config file, substitutes environment references,
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse([]byte(Expand(string(data))))
}

// Parse decodes already-expanded JSON.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3210
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Routing.DefaultMode == "" {
		c.Routing.DefaultMode = string(provider.ModeOnline)
	}
	if c.Database.Redis.RunTTLHour == 0 {
		c.Database.Redis.RunTTLHour = 24
	}
	for i := range c.Providers {
		if c.Providers[i].Name == "" {
			c.Providers[i].Name = c.Providers[i].ID
		}
	}
}

// Validate checks field rules and cross references between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ids := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if ids[p.ID] {
			return fmt.Errorf("invalid config: duplicate provider id %q", p.ID)
		}
		ids[p.ID] = true
	}

	var errs []error
	ref := func(what, id string) {
		if id != "" && !ids[id] {
			errs = append(errs, fmt.Errorf("%s references unknown provider %q", what, id))
		}
	}
	ref("routing.online", c.Routing.Online)
	ref("routing.offline", c.Routing.Offline)
	for a, p := range c.Routing.Bindings {
		ref("routing.bindings."+a, p)
	}
	for a, chain := range c.Routing.Fallbacks {
		for _, p := range chain {
			ref("routing.fallbacks."+a, p)
		}
	}
	for name := range c.Agents {
		if _, err := agent.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("agents.%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Provider converts to the provider package's form.
func (p ProviderConfig) Provider() provider.ProviderConfig {
	return provider.ProviderConfig{
		ID:       p.ID,
		Type:     p.Type,
		Name:     p.Name,
		Endpoint: p.Endpoint,
		APIKey:   p.APIKey,
		Models:   p.Models,
		Extra:    p.Extra,
		Timeout:  time.Duration(p.TimeoutSec) * time.Second,
	}
}

// AgentOverrides returns the persona overrides keyed by agent ID. An
// unknown agent key is an error naming that key.
func (c *Config) AgentOverrides() (map[agent.ID]agent.Override, error) {
	out := make(map[agent.ID]agent.Override, len(c.Agents))
	for name, o := range c.Agents {
		id, err := agent.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("agents.%s: %w", name, err)
		}
		out[id] = o.Override()
	}
	return out, nil
}

// Override converts to the agent package's form.
func (o AgentOverride) Override() agent.Override {
	return agent.Override{Model: o.Model, Temperature: o.Temperature, Instructions: o.Instructions}
}

// HistoryWindow converts to the history package's form.
func (h HistoryConfig) HistoryWindow() history.Config {
	cfg := history.DefaultConfig()
	if h.MaxTokens > 0 {
		cfg.MaxTokens = h.MaxTokens
	}
	if h.MaxMessages > 0 {
		cfg.MaxMessages = h.MaxMessages
	}
	return cfg
}

// Mode returns the default completion mode.
func (r RoutingConfig) Mode() provider.Mode {
	return provider.Mode(r.DefaultMode)
}
