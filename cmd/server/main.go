// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/falroman/partyquiz/internal/autoplay"
	"github.com/falroman/partyquiz/internal/cache"
	"github.com/falroman/partyquiz/internal/clock"
	"github.com/falroman/partyquiz/internal/config"
	"github.com/falroman/partyquiz/internal/content"
	"github.com/falroman/partyquiz/internal/handlers"
	"github.com/falroman/partyquiz/internal/janitor"
	"github.com/falroman/partyquiz/internal/lobby"
	"github.com/falroman/partyquiz/internal/quiz"
	"github.com/falroman/partyquiz/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("QUIZ_DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("configuration failed")
	}

	seed := cfg.Content.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Content packs load once; any malformed pack aborts startup.
	store, err := content.Load(cfg.Content.Dir, seed)
	if err != nil {
		logger.WithError(err).Fatal("content packs failed to load")
	}
	if !store.HasLocale(cfg.Content.Locale) {
		logger.WithField("locale", cfg.Content.Locale).Fatal("no content packs for configured locale")
	}

	clk := clock.System()
	registry := room.NewRegistry(clk)
	conns := room.NewConnectionIndex()

	engine := quiz.NewEngine(store, rand.New(rand.NewSource(seed)))
	orch := quiz.NewOrchestrator(logger, registry, engine, clk, quiz.DefaultDurations(), cfg.Content.Locale)
	mgr := lobby.NewManager(logger, registry, conns, clk)

	hub := handlers.NewServer(logger, mgr, orch, conns, cfg.Server.AllowedOrigins)

	mgr.BroadcastFn = func(code string, ev lobby.Event) { hub.BroadcastToRoom(code, ev) }
	mgr.OnStartGame = func(code string) {
		if err := orch.StartGame(code); err != nil {
			logger.WithError(err).WithField("room", code).Error("game start handoff failed")
		}
	}
	mgr.OnResync = orch.SendStateTo
	mgr.OnRoomRemoved = hub.CloseRoomConnections

	orch.BroadcastFn = func(code string, ev quiz.Event) { hub.BroadcastToRoom(code, ev) }
	orch.SendFn = func(connID uuid.UUID, ev quiz.Event) { hub.SendToConn(connID, ev) }
	orch.ConnectionsFn = conns.ListForRoom

	var historian *cache.Historian
	if cfg.Historian.Enabled {
		historian, err = cache.NewHistorian(logger, cfg.Historian.RedisAddr, cfg.Historian.RedisDB, cfg.Historian.QueueName)
		if err != nil {
			logger.WithError(err).Fatal("historian failed to connect")
		}
		defer historian.Close()
		orch.RecordFn = historian.Record
	}

	router := handlers.NewRouter(logger, hub, cfg.Server.PublicBaseURL, cfg.Server.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if cfg.RoomCleanup.Enabled {
		jan := janitor.New(logger, registry, mgr, orch,
			cfg.RoomCleanup.CleanupInterval(), cfg.RoomCleanup.HostTTL(), cfg.RoomCleanup.PlayerGrace())
		g.Go(func() error { return ignoreCanceled(jan.Run(ctx)) })
	}

	if cfg.Autoplay.Enabled {
		driver := autoplay.New(logger, registry, orch, rand.New(rand.NewSource(seed+1)),
			cfg.Autoplay.PollInterval(), cfg.Autoplay.MinActionDelay(), cfg.Autoplay.MaxActionDelay())
		g.Go(func() error { return ignoreCanceled(driver.Run(ctx)) })
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
