package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/skyplayer/internal/config"
	"github.com/jmylchreest/skyplayer/internal/database"
	"github.com/jmylchreest/skyplayer/internal/engine/hls"
	internalhttp "github.com/jmylchreest/skyplayer/internal/http"
	"github.com/jmylchreest/skyplayer/internal/http/handlers"
	"github.com/jmylchreest/skyplayer/internal/httpclient"
	"github.com/jmylchreest/skyplayer/internal/player"
	"github.com/jmylchreest/skyplayer/internal/remote/mpris"
	"github.com/jmylchreest/skyplayer/internal/repository"
	"github.com/jmylchreest/skyplayer/internal/scheduler"
	"github.com/jmylchreest/skyplayer/internal/service/history"
	"github.com/jmylchreest/skyplayer/internal/surface"
	"github.com/jmylchreest/skyplayer/internal/transport"
	"github.com/jmylchreest/skyplayer/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the player service",
	Long: `Start the skyplayer HTTP API.

The server provides:
- POST /api/v1/player/commands/{method} to drive the player
- GET /api/v1/player/events, a server-sent event stream of state snapshots
- GET /api/v1/history/sessions for recorded playback sessions
- /health and /livez probes, and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to bind to (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().String("url", "", "HLS URL to load on startup (overrides player.initial_url)")
	serveCmd.Flags().Bool("mpris", false, "register the MPRIS2 remote (overrides remote.mpris.enabled)")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("url") {
		cfg.Player.InitialURL, _ = flags.GetString("url")
	}
	if flags.Changed("mpris") {
		cfg.Remote.MPRIS.Enabled, _ = flags.GetBool("mpris")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logs, err := newLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer logs.output.Close()
	logger := logs.logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userAgent := cfg.Player.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	fetcherConfig := httpclient.DefaultConfig()
	fetcherConfig.Timeout = cfg.Player.HTTPTimeout
	fetcherConfig.UserAgent = userAgent
	fetcherConfig.Logger = logger

	surfaces := surface.NewMemoryRegistry()
	host := transport.NewHost(transport.HostOptions{
		Factory: hls.Factory(hls.Options{
			Fetcher: httpclient.New(fetcherConfig),
			Policy:  player.NewInfiniteRetryPolicy(),
			Logger:  logger,
		}),
		Registry:         surfaces,
		PositionInterval: cfg.Player.PositionInterval,
		Logger:           logger,
	})
	dispatcher := transport.NewDispatcher(host).
		WithLogger(logger).
		WithLoggerConfigurer(logs.configure)

	var (
		db       *database.DB
		repo     repository.PlaybackSessionRepository
		recorder *history.Recorder
		sched    *scheduler.Scheduler
	)
	if cfg.History.Enabled {
		db, err = database.New(cfg.Database, logger, nil)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		repo = repository.NewPlaybackSessionRepository(db.DB)
		recorder = history.NewRecorder(repo, history.Options{
			FlushInterval: cfg.History.FlushInterval,
			Logger:        logger,
		})
		host.AddObserver(recorder)

		sched = scheduler.NewScheduler().WithLogger(logger)
		if err := history.NewPruner(repo, cfg.History.Retention, logger).Register(sched, cfg.History.PruneSchedule); err != nil {
			return fmt.Errorf("registering history pruning: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
	}

	server := internalhttp.NewServer(internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     internalhttp.DefaultServerConfig().IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, logger, version.Version)

	health := handlers.NewHealthHandler(version.Version).WithPlayer(host, surfaces)
	if db != nil {
		health.WithDB(db)
	}
	health.Register(server.API())

	handlers.NewPlayerHandler(dispatcher, host).Register(server.API())
	handlers.NewEventsHandler(host.Hub(), cfg.Player.EventRateLimit).RegisterSSE(server.Router())
	if repo != nil {
		handlers.NewHistoryHandler(repo).Register(server.API())
	}

	var remote *mpris.Remote
	if cfg.Remote.MPRIS.Enabled {
		remote = mpris.New(dispatcher, host.Hub(), mpris.Options{Name: cfg.Remote.MPRIS.Name, Logger: logger})
		if err := remote.Connect(ctx); err != nil {
			logger.Warn("mpris remote unavailable", slog.String("error", err.Error()))
			remote = nil
		}
	}

	if url := cfg.Player.InitialURL; url != "" {
		go func() {
			if _, err := dispatcher.Dispatch(ctx, transport.MethodInitPlayerWithNetwork, transport.Args{"url": url}); err != nil {
				logger.Error("loading initial url failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("starting skyplayer",
		slog.String("address", server.Addr()),
		slog.String("version", version.Version),
		slog.Bool("history", cfg.History.Enabled),
		slog.Bool("mpris", remote != nil),
	)

	serveErr := server.ListenAndServe(ctx)

	// Release the player before the recorder closes so the last session is
	// ended with its final position.
	host.Release()
	if remote != nil {
		if err := remote.Close(); err != nil {
			logger.Debug("closing mpris remote", slog.String("error", err.Error()))
		}
	}
	if sched != nil {
		sched.Stop()
	}
	if recorder != nil {
		recorder.Close()
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	logger.Info("skyplayer stopped")
	return nil
}
