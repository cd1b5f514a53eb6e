package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jensholdgaard/trinity/internal/backup"
	"github.com/jensholdgaard/trinity/internal/bot"
	"github.com/jensholdgaard/trinity/internal/bot/commands"
	"github.com/jensholdgaard/trinity/internal/clock"
	"github.com/jensholdgaard/trinity/internal/config"
	"github.com/jensholdgaard/trinity/internal/economy"
	"github.com/jensholdgaard/trinity/internal/encounter"
	"github.com/jensholdgaard/trinity/internal/health"
	"github.com/jensholdgaard/trinity/internal/inventory"
	"github.com/jensholdgaard/trinity/internal/leader"
	"github.com/jensholdgaard/trinity/internal/monitor"
	"github.com/jensholdgaard/trinity/internal/random"
	"github.com/jensholdgaard/trinity/internal/state"
	"github.com/jensholdgaard/trinity/internal/store"
	"github.com/jensholdgaard/trinity/internal/telemetry"

	// Register journal drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/trinity/internal/store/postgres"
	_ "github.com/jensholdgaard/trinity/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := cfg.Logging.SlogLevel()

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, level)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider(level)
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	metrics, err := telemetry.NewMetrics(tp.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	repos, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening journal (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()
	logger.InfoContext(ctx, "connected to journal", slog.String("driver", cfg.Database.Driver))

	st, err := state.Open(ctx, cfg.State.Path, logger)
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}

	rnd, err := newSource(cfg.State.Seed)
	if err != nil {
		return fmt.Errorf("seeding random source: %w", err)
	}

	econ := economy.NewManager(st, repos.Events, clk, rnd, metrics, logger, tp.TracerProvider)
	inv := inventory.NewManager(st, repos.Events, clk, metrics, logger, tp.TracerProvider)
	enc := encounter.NewManager(st, repos.Events, clk, rnd, metrics, logger, tp.TracerProvider)
	backups := backup.NewScheduler(st, cfg.State.BackupDir, repos.Events, clk, metrics, logger, tp.TracerProvider)
	handlers := commands.NewHandlers(econ, inv, enc, st, backups, clk, logger, tp.TracerProvider)

	checkers := []health.Checker{
		{Name: "journal", Check: repos.Ping},
		health.File("state", cfg.State.Path),
		health.Schedule("backup", clk, time.Minute, backups.Next),
	}
	var elector *leader.Elector
	if cfg.LeaderElection.Enabled {
		elector = leader.New(cfg.LeaderElection, logger)
		checkers = append(checkers, health.Checker{Name: "leader", Check: elector.Check})
	}
	healthHandler := health.NewHandler(clk, version, checkers...)

	hub := monitor.NewHub(enc, logger)
	go hub.Run(ctx)

	// The HTTP server runs on all replicas.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler.LivenessHandler())
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler())
	mux.HandleFunc("/encounters", hub.ListHandler())
	mux.HandleFunc("/encounters/ws", hub.ServeWS)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	// serve is the work only the active replica does. It blocks until ctx
	// is done.
	serve := func(ctx context.Context) error {
		// Another replica may have written the document since we opened it.
		st.Load(ctx)

		discordBot, err := bot.New(cfg.Discord, econ, handlers, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		if err := discordBot.Start(ctx); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}

		backupDone := make(chan struct{})
		go func() {
			defer close(backupDone)
			if err := backups.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "backup scheduler stopped", slog.Any("error", err))
			}
		}()

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "trinity is running", slog.String("version", version))

		<-ctx.Done()

		healthHandler.SetReady(false)
		if stopErr := discordBot.Stop(); stopErr != nil {
			logger.Error("bot shutdown error", slog.Any("error", stopErr))
		}
		<-backupDone
		if saveErr := st.Save(context.Background()); saveErr != nil {
			logger.Error("final state save failed", slog.Any("error", saveErr))
		}
		return nil
	}

	if elector != nil {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := elector.Run(ctx, func(ctx context.Context) {
			if serveErr := serve(ctx); serveErr != nil {
				logger.ErrorContext(ctx, "serving failed", slog.Any("error", serveErr))
				cancel()
			}
		}, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else if err := serve(ctx); err != nil {
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newSource(seed uint64) (random.Source, error) {
	if seed != 0 {
		return random.NewSeeded(seed), nil
	}
	return random.New()
}
