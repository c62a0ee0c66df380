package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"quizflow-client/internal/app"
	"quizflow-client/internal/config"
	"quizflow-client/internal/infra/backend"
	"quizflow-client/internal/infra/memory"
	"quizflow-client/internal/infra/postgres"
	infraredis "quizflow-client/internal/infra/redis"
	"quizflow-client/internal/logging"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// deps is the object graph shared by the commands. Redis and Postgres are
// optional; without them the in-memory adapters and the log sink are used.
type deps struct {
	cfg     config.Config
	logger  *slog.Logger
	backend *backend.Client
	redis   *redis.Client
	pool    *pgxpool.Pool
}

func newDeps(ctx context.Context, configPath string, logOut io.Writer) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)

	d := &deps{
		cfg:     cfg,
		logger:  logger,
		backend: backend.NewClient(cfg.Backend.URL, config.TTLDuration(cfg.Backend.Timeout, backend.DefaultTimeout), logger),
	}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			d.Close()
			return nil, err
		}
		d.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
	}
	return d, nil
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

func (d *deps) retryPolicy() app.RetryPolicy {
	p := app.DefaultRetryPolicy()
	s := d.cfg.Submission
	p.MaxRetries = s.MaxRetries
	p.BaseDelay = config.TTLDuration(s.BaseDelay, p.BaseDelay)
	p.DisplayDelay = config.TTLDuration(s.DisplayDelay, p.DisplayDelay)
	p.HeartbeatInterval = config.TTLDuration(s.Heartbeat, p.HeartbeatInterval)
	p.RetryRejected = d.cfg.RetryRejected()
	return p
}

func (d *deps) flowRegistry() app.FlowRegistry {
	if d.redis != nil {
		return infraredis.NewFlowRegistry(d.redis, config.TTLDuration(d.cfg.Redis.TTL, infraredis.DefaultLeaseTTL))
	}
	return memory.NewFlowRegistry()
}

func (d *deps) attemptRecorder() app.AttemptRecorder {
	if d.pool != nil {
		return postgres.NewAttemptJournal(d.pool)
	}
	return logging.NewAttemptLog(d.logger)
}

func (d *deps) analysisRepository() app.AnalysisRepository {
	ttl := config.TTLDuration(d.cfg.Analysis.TTL, 10*time.Minute)
	if d.redis != nil {
		return infraredis.NewAnalysisRepository(d.redis, d.backend, ttl)
	}
	return memory.NewAnalysisRepository(d.backend, ttl)
}

func (d *deps) coordinator() *app.SubmissionCoordinator {
	return app.NewSubmissionCoordinator(d.backend,
		app.WithRetryPolicy(d.retryPolicy()),
		app.WithFlowRegistry(d.flowRegistry()),
		app.WithAttemptRecorder(d.attemptRecorder()),
		app.WithLogger(d.logger),
	)
}

func (d *deps) submitter() *app.CheckedSubmitter {
	return app.NewCheckedSubmitter(d.backend, d.coordinator())
}
