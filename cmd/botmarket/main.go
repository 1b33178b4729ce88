package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/botmarket/internal/api"
	"github.com/nidhogg/botmarket/internal/config"
	"github.com/nidhogg/botmarket/internal/events"
	"github.com/nidhogg/botmarket/internal/market"
	"github.com/nidhogg/botmarket/internal/notify"
	pgstore "github.com/nidhogg/botmarket/internal/store"
	"github.com/nidhogg/botmarket/internal/wallet"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting BotMarket...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/botmarket.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	m := market.New(cfg.Platform.FeePercent, cfg.Platform.Wallet, logger)

	// Initialize PostgreSQL persistence
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
		}
	}
	if pgStore != nil {
		m.SetPersister(pgStore)
		if err := restore(m, pgStore, logger); err != nil {
			logger.Warn("failed to restore marketplace state", zap.Error(err))
		}
	}

	// Initialize event sinks: Redis Streams bus plus chat announcers
	var sinks []market.EventSink

	var bus *events.Bus
	if cfg.Database.Redis.URL != "" {
		b, busErr := events.NewBus(cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without event stream", zap.Error(busErr))
		} else {
			bus = b
			sinks = append(sinks, bus)
		}
	}

	gw := notify.NewGateway(logger)
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.BotToken != "" {
		da, daErr := notify.NewDiscordAnnouncer(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger)
		if daErr != nil {
			logger.Warn("Discord announcer unavailable", zap.Error(daErr))
		} else {
			gw.Register(da)
		}
	}
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken != "" {
		gw.Register(notify.NewSlackAnnouncer(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, logger))
	}
	sinks = append(sinks, gw)

	if len(sinks) > 0 {
		m.SetEvents(events.Multi(sinks...))
	}

	// Seed example skills
	if cfg.SkillsDir != "" {
		n, seedErr := m.SeedFromDir(context.Background(), cfg.SkillsDir)
		if seedErr != nil {
			logger.Warn("skill seeding failed", zap.Error(seedErr))
		} else if n > 0 {
			logger.Info("Seeded skills", zap.Int("count", n))
		}
	}

	// Bot identity: challenge handshake + session tokens
	challenges := wallet.NewChallengeManager(wallet.DefaultChallengeTTL, logger)
	sweepStop := make(chan struct{})
	challenges.StartSweeper(time.Minute, sweepStop)
	tokens := wallet.NewTokenStore()

	// Build HTTP handler
	handler := api.NewHandler(m, challenges, tokens, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "3000"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("BotMarket listening", zap.String("port", port),
			zap.Int64("fee_percent", cfg.Platform.FeePercent),
			zap.String("platform_wallet", cfg.Platform.Wallet))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down BotMarket...")
	close(sweepStop)
	srv.Shutdown(context.Background())
	if bus != nil {
		bus.Close()
	}
	gw.Close()
	if pgStore != nil {
		pgStore.Close()
	}
}

// restore loads persisted marketplace state into the in-memory market.
func restore(m *market.Market, s *pgstore.Store, logger *zap.Logger) error {
	ctx := context.Background()

	skills, err := s.ListSkills(ctx)
	if err != nil {
		return err
	}
	listings, err := s.ListListings(ctx)
	if err != nil {
		return err
	}
	purchases, err := s.ListPurchases(ctx)
	if err != nil {
		return err
	}
	sellers, err := s.ListSellers(ctx)
	if err != nil {
		return err
	}
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		return err
	}

	m.Restore(skills, listings, purchases, sellers, txs)
	logger.Info("Restored marketplace state from DB",
		zap.Int("skills", len(skills)),
		zap.Int("listings", len(listings)),
		zap.Int("purchases", len(purchases)),
		zap.Int("sellers", len(sellers)),
		zap.Int("transactions", len(txs)))
	return nil
}
