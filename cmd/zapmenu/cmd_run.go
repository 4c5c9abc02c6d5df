package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"zapmenu/pkg/bus"
	"zapmenu/pkg/config"
	"zapmenu/pkg/engine"
	"zapmenu/pkg/escalation"
	"zapmenu/pkg/humanizer"
	"zapmenu/pkg/janitor"
	"zapmenu/pkg/logger"
	"zapmenu/pkg/observability"
	"zapmenu/pkg/server"
	"zapmenu/pkg/session"
	"zapmenu/pkg/store"
	"zapmenu/pkg/transport"
)

// statusView adapts live components to the health endpoint.
type statusView struct {
	sessions *session.Store
	wa       *transport.WhatsApp
}

func (v *statusView) ActiveSessions() int   { return v.sessions.ActiveCount() }
func (v *statusView) TransportOnline() bool { return v.wa.IsLoggedIn() }

func runCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(config.DataDir(), 0755); err != nil {
		fmt.Printf("Failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		logger.FatalCF("main", "Bot exited with error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	logger.InfoC("main", "Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	repo, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}

	metrics := observability.NewMetrics("zapmenu")
	messageBus := bus.NewMessageBus()
	defer messageBus.Close()

	sessions := session.NewStore(cfg.Bot.RootMenuID)
	sessions.SetOnTerminate(func(userID, reason string) {
		metrics.SessionsTerminated.WithLabelValues(reason).Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	wa, err := transport.NewWhatsApp(ctx, cfg.WhatsApp, messageBus)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}
	defer wa.Disconnect()

	seq := humanizer.NewSequencer(wa, humanizer.Options{
		StepDelayMin: time.Duration(cfg.Humanizer.StepDelayMinMS) * time.Millisecond,
		StepDelayMax: time.Duration(cfg.Humanizer.StepDelayMaxMS) * time.Millisecond,
		IdleDelayMin: time.Duration(cfg.Humanizer.IdleDelayMinMS) * time.Millisecond,
		IdleDelayMax: time.Duration(cfg.Humanizer.IdleDelayMaxMS) * time.Millisecond,
	})
	defer seq.StopAll()

	detector := escalation.NewDetector(seq, wa, sessions, cfg.Bot.TriggerCode, cfg.Bot.HandoffNotice, cfg.EscalationGrace())
	detector.SetOnEscalate(func(userID string) {
		metrics.Escalations.Inc()
	})
	defer detector.StopAll()

	scheduler := session.NewScheduler(func(userID string) {
		sessions.Terminate(userID, session.ReasonLifetime)
	})
	defer scheduler.StopAll()

	eng := engine.NewEngine(repo, wa, seq, detector, sessions, scheduler, metrics, engine.Options{
		RootMenuID:         cfg.Bot.RootMenuID,
		WelcomeMessage:     cfg.Bot.WelcomeMessage,
		InvalidOptionReply: cfg.Bot.InvalidOptionReply,
		FallbackReply:      cfg.Bot.FallbackReply,
		SessionMaxAge:      cfg.SessionMaxAge(),
	})

	dispatcher := engine.NewDispatcher(eng, messageBus, metrics)
	jan := janitor.NewJanitor(sessions, metrics, time.Duration(cfg.Janitor.SweepEverySec)*time.Second)
	gateway := server.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, &statusView{sessions: sessions, wa: wa})

	if err := wa.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	logger.InfoCF("main", "Bot is up", map[string]interface{}{
		logger.FieldMenuID: cfg.Bot.RootMenuID,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return gateway.Run(gctx) })
	g.Go(func() error { return jan.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
