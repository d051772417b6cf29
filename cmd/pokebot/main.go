// Package main runs the Telegram creature-collection bot.
package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pokebot/pokebot/data"
	"github.com/pokebot/pokebot/internal/bot"
	"github.com/pokebot/pokebot/internal/config"
	"github.com/pokebot/pokebot/internal/game/catalog"
	"github.com/pokebot/pokebot/internal/game/combat"
	"github.com/pokebot/pokebot/internal/game/command"
	"github.com/pokebot/pokebot/internal/game/creature"
	"github.com/pokebot/pokebot/internal/game/dice"
	"github.com/pokebot/pokebot/internal/game/safari"
	"github.com/pokebot/pokebot/internal/game/trainer"
	"github.com/pokebot/pokebot/internal/observability"
	"github.com/pokebot/pokebot/internal/scripting"
	"github.com/pokebot/pokebot/internal/server"
	"github.com/pokebot/pokebot/internal/storage/memory"
	"github.com/pokebot/pokebot/internal/storage/postgres"
)

// store is what the bot needs from a storage driver.
type store interface {
	trainer.Store
	safari.Store
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting pokebot",
		zap.String("mode", cfg.Telegram.Mode),
		zap.String("driver", cfg.Database.Driver),
	)

	// Catalog
	catStart := time.Now()
	var content fs.FS = data.FS
	if cfg.Game.DataDir != "" {
		content = os.DirFS(cfg.Game.DataDir)
	}
	cat, err := catalog.Load(content)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("species", len(cat.SpeciesNames())),
		zap.Int("balls", len(cat.Balls())),
		zap.Duration("elapsed", time.Since(catStart)),
	)

	mods := scripting.NewModifiers(cfg.Game.ScriptLimit, observability.Component(logger, "scripting"))
	defer mods.Close()
	for _, b := range cat.Balls() {
		if err := mods.Compile(b.Name, b.Script); err != nil {
			logger.Fatal("compiling ball modifier", zap.String("ball", b.Name), zap.Error(err))
		}
	}

	// Randomness
	var base dice.Source
	if cfg.Game.Seed != 0 {
		base = dice.NewSeededSource(cfg.Game.Seed)
		logger.Warn("using a fixed random seed", zap.Uint64("seed", cfg.Game.Seed))
	} else {
		base = dice.NewCryptoSource()
	}
	src := dice.NewLoggedSource(base, observability.Component(logger, "dice"))

	// Storage
	var st store
	var health bot.HealthFunc
	lc := server.NewLifecycle(logger)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected", zap.Duration("elapsed", time.Since(dbStart)))
		st = postgres.NewTrainerRepository(pool.DB())
		health = func(ctx context.Context) error { return pool.Health(ctx, 2*time.Second) }
		lc.Add("db-health", server.Ticker(30*time.Second, logger, "db-health", health))
	default:
		logger.Warn("using the in-memory store; documents are lost on exit")
		st = memory.New()
	}

	loc, err := cfg.Game.Location()
	if err != nil {
		logger.Fatal("resolving timezone", zap.Error(err))
	}

	factory := creature.NewFactory(cat, src)
	catcher := combat.NewCatcher(mods, src, observability.Component(logger, "catch"))
	engine := combat.NewEngine(factory, catcher, src, combat.Config{
		IdleTimeout:   cfg.Game.DuelIdleTimeout,
		AcceptTimeout: cfg.Game.DuelAcceptTimeout,
	}, observability.Component(logger, "combat"))
	defer engine.Shutdown()

	safariSvc := safari.NewService(safari.Config{
		Balls:     cfg.Game.SafariBalls,
		ResetHour: cfg.Game.SafariResetHour,
		Location:  loc,
	}, factory, catcher, src, st, observability.Component(logger, "safari"))
	restored, err := safariSvc.Restore(ctx)
	if err != nil {
		logger.Fatal("restoring safari sessions", zap.Error(err))
	}
	logger.Info("safari sessions restored", zap.Int("count", restored))

	// Transport
	images, err := bot.NewImageCache(cfg.Game.ImageCacheSize)
	if err != nil {
		logger.Fatal("creating image cache", zap.Error(err))
	}
	tg, err := bot.NewTelegram(cfg.Telegram.Token, images, observability.Component(logger, "telegram"))
	if err != nil {
		logger.Fatal("connecting to telegram", zap.Error(err))
	}

	if err := tg.SetCommands(command.DefaultRegistry().Menu()); err != nil {
		logger.Warn("publishing command menu", zap.Error(err))
	}

	b := bot.New(bot.Config{
		Admins:        cfg.Game.AdminIDs,
		BotName:       tg.UserName(),
		ProcessingTTL: cfg.Game.ProcessingTTL,
		FlowTTL:       cfg.Game.FlowTTL,
	}, bot.Deps{
		Transport: tg,
		Factory:   factory,
		Trainers:  trainer.NewRepository(st),
		Engine:    engine,
		Safari:    safariSvc,
		Dice:      src,
		Logger:    observability.Component(logger, "bot"),
	})

	httpLogger := observability.Component(logger, "http")
	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		web := bot.NewWebhookServer(cfg.Telegram.ListenAddr, cfg.Telegram.WebhookSecret, b.Handle, health, httpLogger)
		if err := tg.SetWebhook(cfg.Telegram.WebhookURL + "/telegram/" + cfg.Telegram.WebhookSecret); err != nil {
			logger.Fatal("registering webhook", zap.Error(err))
		}
		lc.Add("webhook", web)
	default:
		// Polling still serves /healthz.
		lc.Add("health", bot.NewWebhookServer(cfg.Telegram.ListenAddr, "", nil, health, httpLogger))
		lc.Add("poller", bot.NewPoller(tg, b.Handle, cfg.Telegram.UpdateTimeout, observability.Component(logger, "poller")))
	}
	lc.Add("sweeper", server.NewContextService(func(ctx context.Context) error {
		return b.RunSweeper(ctx, cfg.Game.SweepInterval)
	}))

	logger.Info("pokebot ready",
		zap.String("bot", tg.UserName()),
		zap.Int("admins", len(cfg.Game.AdminIDs)),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Error("pokebot stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
