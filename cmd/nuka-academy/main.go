package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/nuka-academy/internal/agent"
	"github.com/nidhogg/nuka-academy/internal/api"
	"github.com/nidhogg/nuka-academy/internal/command"
	"github.com/nidhogg/nuka-academy/internal/config"
	"github.com/nidhogg/nuka-academy/internal/gateway"
	"github.com/nidhogg/nuka-academy/internal/history"
	"github.com/nidhogg/nuka-academy/internal/intent"
	"github.com/nidhogg/nuka-academy/internal/orchestrator"
	"github.com/nidhogg/nuka-academy/internal/provider"
	msgrouter "github.com/nidhogg/nuka-academy/internal/router"
	pgstore "github.com/nidhogg/nuka-academy/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/academy.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Nuka Academy...", zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Providers and routing
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := pc.Provider()
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		case "ollama":
			router.Register(provider.NewOllamaProvider(provCfg, logger))
		}
	}
	if cfg.Routing.Online != "" {
		router.SetDefault(cfg.Routing.Online)
	}
	for agentID, providerID := range cfg.Routing.Bindings {
		router.Bind(agentID, providerID)
	}
	for agentID, chain := range cfg.Routing.Fallbacks {
		router.SetFallbacks(agentID, chain)
	}
	if len(router.ListProviders()) == 0 {
		logger.Warn("no providers configured, every completion will fail")
	}

	// Personas
	personas := agent.NewRegistry(logger)
	if n := personas.LoadProfiles(cfg.Profiles); n > 0 {
		logger.Info("persona profiles loaded", zap.Int("count", n), zap.String("dir", cfg.Profiles))
	}
	overrides, err := cfg.AgentOverrides()
	if err != nil {
		logger.Fatal("invalid persona override", zap.Error(err))
	}
	for id, o := range overrides {
		if err := personas.Apply(id, o); err != nil {
			logger.Fatal("persona override failed", zap.String("agent", string(id)), zap.Error(err))
		}
	}

	completer := provider.NewAgentCompleter(router, personas,
		history.NewTrimmer(cfg.History.HistoryWindow(), logger),
		provider.CompleterConfig{OfflineProvider: cfg.Routing.Offline},
		logger)
	orch := orchestrator.New(intent.Default(), completer, logger)

	// PostgreSQL run records and chat sessions
	var pg *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without run history", zap.Error(pgErr))
		} else if mErr := ps.Migrate(ctx, "migrations"); mErr != nil {
			logger.Fatal("migration failed", zap.Error(mErr))
		} else {
			pg = ps
		}
	}

	// Redis progress bus
	var bus *orchestrator.ProgressBus
	if cfg.Database.Redis.URL != "" {
		ttl := time.Duration(cfg.Database.Redis.RunTTLHour) * time.Hour
		b, busErr := orchestrator.DialProgressBus(ctx, cfg.Database.Redis.URL, ttl, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, run progress will not be streamed", zap.Error(busErr))
		} else {
			bus = b
		}
	}

	var recorder orchestrator.RunRecorder
	if pg != nil {
		recorder = pg
	}
	runner := orchestrator.NewRunner(orch, bus, recorder, cfg.Server.RunPoolSize, logger)

	// Chat gateway
	gw := gateway.NewGateway(logger)
	commands := command.NewRegistry()

	var sessions msgrouter.SessionStore
	if pg != nil {
		sessions = pg
	}
	msgRouter := msgrouter.New(orch, completer, gw, sessions, commands,
		msgrouter.Config{Mode: cfg.Routing.Mode(), HistoryLimit: cfg.History.MaxMessages}, logger)
	gw.SetHandler(msgRouter.Handle)

	builtins := command.Builtins{Agents: personas, Analyzer: orch.Analyzer(), Status: gw}
	if sessions != nil {
		builtins.Sessions = msgRouter
	}
	command.RegisterBuiltins(commands, builtins)
	command.RegisterProviderCommands(commands, router)

	restAdapter := gateway.NewRESTAdapter(0, logger)
	gw.Register(restAdapter)
	if cfg.Gateway.Slack.Enabled {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	gw.SetPersonas(gateway.PersonasFrom(personas.List()))
	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// HTTP API
	deps := api.Deps{
		Orchestrator: orch,
		Completer:    completer,
		Agents:       personas,
		Providers:    router,
		Runner:       runner,
		Gateway:      gw,
		RESTGateway:  restAdapter,
		DefaultMode:  cfg.Routing.Mode(),
		Checks:       map[string]api.Pinger{},
		Logger:       logger,
	}
	if bus != nil {
		deps.Progress = bus
		deps.Checks["redis"] = bus
	}
	if pg != nil {
		deps.Runs = pg
		deps.Checks["postgres"] = pg
	}
	handler := api.NewHandler(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Nuka Academy listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down Nuka Academy...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := msgRouter.Shutdown(shutdownCtx); err != nil {
		logger.Warn("chat router shutdown", zap.Error(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("runs still in flight at shutdown", zap.Error(err))
	}
	gw.Close()
	if bus != nil {
		bus.Close()
	}
	if pg != nil {
		pg.Close()
	}
}

func newLogger(level string) *zap.Logger {
	if level == "debug" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
