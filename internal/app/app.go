// Package app wires the catalog, cooldown store, decision engine and
// transports, and exposes the runtime modes:
//
//   - Reader mode: MTProto client session ingesting monitored channels
//   - Bot mode: Bot API ingestion of direct/group messages
//   - Login mode: interactive session bootstrap, then exit
//
// Both ingestion modes share the same engine and alert dispatcher.
package app

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/promowatch/telegram-promo-watch/internal/catalog"
	"github.com/promowatch/telegram-promo-watch/internal/config"
	"github.com/promowatch/telegram-promo-watch/internal/cooldown"
	"github.com/promowatch/telegram-promo-watch/internal/dispatch"
	"github.com/promowatch/telegram-promo-watch/internal/engine"
	"github.com/promowatch/telegram-promo-watch/internal/ingest"
	"github.com/promowatch/telegram-promo-watch/internal/matchlog"
	"github.com/promowatch/telegram-promo-watch/internal/observability"
	"github.com/promowatch/telegram-promo-watch/internal/seen"
	"github.com/promowatch/telegram-promo-watch/internal/telegrambot"
	"github.com/promowatch/telegram-promo-watch/internal/worker"
)

const gaugeRefreshInterval = time.Minute

// App holds the application dependencies and provides methods to run
// different modes.
type App struct {
	cfg    *config.Config
	logger *zerolog.Logger
	engine *engine.Engine
	store  *cooldown.Store
	guard  *seen.Guard
	botAPI *tgbotapi.BotAPI
}

func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("bot initialization failed: %w", err)
	}

	store := cooldown.NewStore()
	guard := seen.NewGuard(cfg.SeenCachePath, cfg.SeenCacheSize, logger)
	dispatcher := dispatch.New(api, cfg.SendRPS, logger)

	eng, err := engine.New(
		engine.Config{CooldownWindow: cfg.CooldownWindow, Destination: cfg.DestinationChatID},
		cat, store, dispatcher, matchlog.NewWriter(cfg.MatchLogPath), logger,
	)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	logger.Info().
		Int("products", len(cat.Rules)).
		Dur("cooldown_window", cfg.CooldownWindow).
		Int64("destination", cfg.DestinationChatID).
		Msg("engine configured")

	return &App{
		cfg:    cfg,
		logger: logger,
		engine: eng,
		store:  store,
		guard:  guard,
		botAPI: api,
	}, nil
}

// RunReader runs the client-session ingestion mode.
func (a *App) RunReader(ctx context.Context) error {
	go a.runMaintenance(ctx)

	reader := ingest.New(a.cfg, a.engine, a.guard, a.logger)

	err := reader.Run(ctx)
	a.guard.Dump()

	return err
}

// RunBot runs the Bot API ingestion mode.
func (a *App) RunBot(ctx context.Context) error {
	go a.runMaintenance(ctx)

	bot := telegrambot.New(a.cfg, a.botAPI, a.engine, a.engine, a.guard, a.logger)

	err := bot.Run(ctx)
	a.guard.Dump()

	return err
}

// RunLogin bootstraps the client session interactively and exits.
func (a *App) RunLogin(ctx context.Context) error {
	reader := ingest.New(a.cfg, a.engine, a.guard, a.logger)

	return reader.Login(ctx)
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.cfg.HealthPort, a.logger).Start(ctx)
}

// runMaintenance runs the periodic state dump, cooldown eviction and gauge
// refresh until the context is canceled.
func (a *App) runMaintenance(ctx context.Context) {
	tasks := []worker.Task{
		{
			Name:     "seen_dump",
			Interval: a.cfg.StateDumpInterval,
			Run:      func(context.Context) { a.guard.Dump() },
		},
		{
			Name:     "tracked_keys_gauge",
			Interval: gaugeRefreshInterval,
			Run:      func(context.Context) { observability.TrackedKeys.Set(float64(a.store.Len())) },
		},
	}

	if a.cfg.EntryTTL > 0 {
		tasks = append(tasks, worker.Task{
			Name:     "cooldown_eviction",
			Interval: a.cfg.EntryTTL,
			Run: func(context.Context) {
				if evicted := a.store.EvictBefore(time.Now().Add(-a.cfg.EntryTTL)); evicted > 0 {
					a.logger.Info().Int("evicted", evicted).Msg("evicted stale cooldown entries")
				}
			},
		})
	}

	if err := worker.Loop(ctx, worker.Config{
		Name:   "maintenance",
		Tasks:  tasks,
		Logger: a.logger,
	}); err != nil {
		a.logger.Debug().Err(err).Msg("maintenance loop exited")
	}
}
