package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/cache"
	"github.com/crowdchess/crowdchess/internal/config"
	"github.com/crowdchess/crowdchess/internal/coordinator"
	"github.com/crowdchess/crowdchess/internal/engine"
	"github.com/crowdchess/crowdchess/internal/game"
	"github.com/crowdchess/crowdchess/internal/gateway"
	"github.com/crowdchess/crowdchess/internal/httpapi"
	"github.com/crowdchess/crowdchess/internal/journal"
	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/rules"
	"github.com/crowdchess/crowdchess/internal/store"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared store: NATS when configured, in-memory for single-process runs.
	var st store.Store
	if cfg.NATS.URL != "" {
		natsCfg := store.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.StateBucket = cfg.NATS.StateBucket
		natsCfg.VersionBucket = cfg.NATS.VersionBucket
		natsCfg.VersionTTL = cfg.VersionTTL()
		natsStore, err := store.NewNATSStore(ctx, natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to shared store")
		}
		defer natsStore.Close()
		st = natsStore
	} else {
		log.Warn().Msg("no NATS URL configured; using in-process store (single instance only)")
		st = store.NewMemoryStore()
	}

	clock := clockwork.NewRealClock()
	eng := engine.New(rules.New(), engine.Config{
		ConfirmTimeout: cfg.ConfirmTimeout(),
		MoveTimeout:    cfg.MoveTimeout(),
	})
	coord := coordinator.New(st, eng, clock)
	stateCache := cache.New(st)
	hub := gateway.NewHub(gateway.DefaultConfig())

	var jnl *journal.Journal
	if cfg.PostgresDSN != "" {
		jnl, err = journal.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open move journal")
		}
		defer jnl.Close()
	}

	app := game.NewApp(coord, eng, stateCache, st, hub, jnl, nil, cfg.AdminToken)

	var sweeper *coordinator.Sweeper
	if cfg.SweeperEnabled {
		sweeper = coordinator.NewSweeper(coord, stateCache, clock, coordinator.DefaultSweeperConfig(), app.OnSweep)
		app.SetSweeper(sweeper)
	}
	hub.SetSnapshot(func(ctx context.Context, viewerID string) (*models.View, error) {
		return app.View(ctx, viewerID)
	})

	go hub.Start(ctx)
	go func() {
		if err := stateCache.RunProbe(ctx, clock, cfg.ProbeInterval(), app.OnRemoteChange); err != nil {
			log.Error().Err(err).Msg("version probe failed")
		}
	}()
	if sweeper != nil {
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				log.Error().Err(err).Msg("deadline sweeper failed")
			}
		}()
	}

	api := httpapi.New(app, hub)
	server := httpapi.NewHTTPServer(cfg.Addr, api.Handler())

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("crowdchess server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
