package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/config"
	"daily-quiz-service/internal/infra/memory"
	pgstore "daily-quiz-service/internal/infra/postgres"
	redisstore "daily-quiz-service/internal/infra/redis"
	"daily-quiz-service/internal/logger"
	"daily-quiz-service/internal/questiongen"
	transport "daily-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daily quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	game, err := cfg.GameConfig()
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
	}

	var loader memory.ActivityLoader = memory.NewStaticActivityLoader(game.Location)
	if pool != nil {
		loader = pgstore.NewActivityLoader(pool, game.Location)
	} else {
		log.Warn().Msg("postgres not configured, every day falls back to sample activity")
	}

	activityTTL := config.TTLDuration(cfg.Activity.TTL, time.Minute)
	var (
		activity app.ActivitySource
		store    app.Store
		sessions app.SessionRepository
	)
	if redisClient != nil {
		sessionTTL := config.TTLDuration(cfg.Redis.SessionTTL, 24*time.Hour)
		activity = redisstore.NewActivityRepository(redisClient, loader, activityTTL)
		store = redisstore.NewStore(redisClient, sessionTTL)
		sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 5*time.Minute), instanceName())
	} else {
		log.Warn().Msg("redis not configured, progress is kept in memory only")
		activity = memory.NewActivityRepository(loader, activityTTL)
		store = memory.NewStore()
		sessions = memory.NewSessionStore()
	}

	service := app.NewQuizService(game, sessions, store, activity,
		questiongen.NewGenerator(cfg.CatalogConfig()),
		app.WithLogger(log),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", finalPort).Str("window", game.Window.String()).Str("timezone", game.Location.String()).Msg("starting daily quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// instanceName identifies this process in session liveness markers.
func instanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
