package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/carebridge/dccp/internal/cache"
	"github.com/carebridge/dccp/internal/config"
	"github.com/carebridge/dccp/internal/dbpool"
	"github.com/carebridge/dccp/internal/httpapi"
	"github.com/carebridge/dccp/internal/logger"
	"github.com/carebridge/dccp/internal/observability"
	"github.com/carebridge/dccp/internal/pharmacy"
	"github.com/carebridge/dccp/internal/routing"
	"github.com/carebridge/dccp/internal/store"
	"github.com/carebridge/dccp/internal/voice"
	"github.com/carebridge/dccp/internal/workflow"
)

// shutdownGracePeriod bounds how long in-flight requests get to finish
// once a shutdown signal arrives.
const shutdownGracePeriod = 10 * time.Second

// ServeCmd starts the discharge-coordination HTTP façade.
type ServeCmd struct {
	Port int `help:"Override the configured HTTP port." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := rootContext()
	defer cancel()

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return fmt.Errorf("serve: parse log level: %w", err)
	}
	logFile := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return fmt.Errorf("serve: open log file: %w", err)
		}
		defer cleanup()
		logFile = f
	}
	logger.Init(level, logFile, cli.LogFormat)
	log := logger.Get()

	path := cli.Config
	if path == "" {
		path = "config.yaml"
	}

	var cfg *config.Config
	if _, statErr := os.Stat(path); statErr != nil {
		log.Warn("config file not found, using defaults", "path", path)
		cfg = config.Default()
	} else {
		loader := config.NewLoader(path, config.WithOnChange(func(cfg *config.Config) {
			log.Info("configuration reloaded", "path", path)
		}))
		var err error
		cfg, err = loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("serve: load config: %w", err)
		}
		defer loader.Close()
		if err := loader.Watch(ctx); err != nil {
			log.Warn("config hot-reload disabled", "error", err)
		}
	}

	if c.Port != 0 {
		cfg.HTTP.Port = c.Port
	}

	pool := dbpool.New()
	defer pool.Close()
	db, err := pool.Get(cfg.Database)
	if err != nil {
		return fmt.Errorf("serve: open database: %w", err)
	}

	st := store.New(db, cfg.Database.Driver)
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("serve: migrate: %w", err)
	}

	scraper := &cache.BrowserScraper{ProxyURL: cfg.Proxy.URL, Headless: true}
	ch := cache.New(st, scraper, cache.WithTTL(cfg.Cache.DefaultTTL))
	for _, category := range []cache.Category{cache.CategoryShelters, cache.CategoryTransport, cache.CategoryBenefits, cache.CategoryResources} {
		if err := ch.EnsureFresh(ctx, category); err != nil {
			log.Warn("initial cache warm-up failed", "category", category, "error", err)
		}
	}

	voiceCaller := voice.New(voice.Config{
		APIKey:        cfg.Voice.APIKey,
		BaseURL:       cfg.Voice.BaseURL,
		PhoneNumberID: cfg.Voice.PhoneNumberID,
		AssistantID:   cfg.Voice.AssistantID,
		DemoMode:      cfg.Voice.DemoMode,
		DemoPhone:     cfg.Voice.DemoPhone,
		PollInterval:  cfg.Voice.PollInterval,
		MaxWait:       cfg.Voice.MaxWait,
		MaxDuration:   cfg.Voice.MaxDuration,
	})

	router := routing.New(routing.Config{
		BaseURL: cfg.Routing.BaseURL,
		APIKey:  cfg.Routing.APIKey,
		Timeout: cfg.Routing.Timeout,
	})

	pharmacyRef, err := pharmacy.Load()
	if err != nil {
		return fmt.Errorf("serve: load pharmacy reference: %w", err)
	}

	obs, err := observability.New(ctx)
	if err != nil {
		return fmt.Errorf("serve: init observability: %w", err)
	}
	defer obs.Shutdown(context.Background())

	wcfg := workflow.DefaultConfig()
	wcfg.ShelterRetryLimit = cfg.Workflow.ShelterRetryLimit
	wcfg.VoiceCallTimeout = cfg.Workflow.VoiceCallTimeout
	wcfg.DemoMode = cfg.Voice.DemoMode
	wcfg.DemoPhone = cfg.Voice.DemoPhone

	deps := workflow.NewDeps(st, ch, voiceCaller, router, pharmacyRef, obs.Metrics)
	deps.Tracer = obs.Tracer()
	engine, err := workflow.Build(wcfg, deps)
	if err != nil {
		return fmt.Errorf("serve: build workflow engine: %w", err)
	}

	srv := httpapi.New(engine, st, ch, obs.MetricsHandler, cfg.HTTP.MaxConcurrentCases)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("serving", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
