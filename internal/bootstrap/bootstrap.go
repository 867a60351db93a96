// Package bootstrap connects the backing services shared by the worker manager and the HTTP API.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"formflow/internal/common/aws"
	"formflow/internal/common/config"
	"formflow/internal/common/database"
	"formflow/internal/common/database/migrations"
	"formflow/internal/common/logger"
	"formflow/internal/common/storage"
	"formflow/internal/notify"
	"formflow/internal/repository"
	"formflow/internal/submission"
)

// Services holds every connected dependency and the pipeline built on them.
type Services struct {
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Forms         *repository.FormRepo
	Pipeline      *submission.Pipeline

	closers []func() error
	logger  logger.Logger
}

// RetryWithBackoff runs operation until it succeeds or maxRetries attempts are used, doubling the delay each time.
func RetryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Build connects Postgres (required), Redis and Elasticsearch (when enabled), the storage
// backend and notifiers, then assembles the submission pipeline.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Services, error) {
	s := &Services{logger: log}

	if err := s.connectPostgres(ctx, cfg, log); err != nil {
		return nil, err
	}

	if cfg.Database.Postgres.AutoMigrate {
		if err := migrations.MigrateUp(s.Postgres.DB); err != nil {
			s.Close()
			return nil, err
		}
		log.Info("database migrations applied", nil)
	} else if err := migrations.CheckStatus(s.Postgres.DB); err != nil {
		log.Warn("database schema is not current", map[string]interface{}{"error": err.Error()})
	}

	if cfg.Database.Redis.Enabled {
		s.Redis = database.NewRedis(cfg.Database.Redis)
		s.closers = append(s.closers, s.Redis.Close)
		err := RetryWithBackoff(ctx, func() error { return s.Redis.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Info("Redis connected successfully", nil)
	}

	if cfg.Database.Elasticsearch.Enabled {
		err := RetryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
			if err != nil {
				return err
			}
			s.Elasticsearch = es
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Info("Elasticsearch connected successfully", nil)
	}

	store, err := storage.NewFromConfig(ctx, cfg.Storage, cfg.AWS.Region)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("storage backend: %w", err)
	}
	log.Info("storage backend ready", map[string]interface{}{"backend": cfg.Storage.Backend})

	notifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Forms = repository.NewFormRepo(s.Postgres.DB)
	deps := submission.Dependencies{
		Schemas:     s.Forms,
		Owners:      s.Forms,
		Repository:  repository.NewSubmissionRepo(s.Postgres.DB),
		Attachments: submission.NewCoordinator(store, cfg.Storage.Folder, cfg.Submission.UploadConcurrency, log),
		Storage:     store,
	}
	if s.Redis != nil {
		deps.Schemas = repository.NewCachedSchemaSource(s.Forms, s.Redis.Client, config.GetDuration(cfg.Database.Redis.SchemaTTL), log)
	}
	if s.Elasticsearch != nil {
		deps.Indexer = repository.NewSubmissionIndex(s.Elasticsearch.Client, cfg.Database.Elasticsearch.Index)
	}
	if notifier.Len() > 0 {
		deps.Notifier = notifier
	}

	s.Pipeline = submission.NewPipeline(submission.Config{
		CompensateOrphans: cfg.Submission.CompensateOrphans,
	}, deps, log)

	return s, nil
}

func (s *Services) connectPostgres(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	err := RetryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		s.Postgres = pg
		return nil
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	s.closers = append(s.closers, s.Postgres.Close)
	log.Info("PostgreSQL connected successfully", nil)
	return nil
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (*notify.Multi, error) {
	multi := notify.NewMulti(log)
	sns, ses := cfg.Notifications.SNS, cfg.Notifications.SES
	if !sns.Enabled && !ses.Enabled {
		return multi, nil
	}

	awsCfg, err := aws.LoadConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	if sns.Enabled {
		multi.Add("sns", notify.NewSNSPublisher(aws.NewSNSClient(awsCfg), sns.TopicARN))
	}
	if ses.Enabled {
		multi.Add("ses", notify.NewSESMailer(aws.NewSESClient(awsCfg), ses.FromEmail, ses.OwnerEmail))
	}
	return multi, nil
}

// HealthChecks returns a ping per connected dependency.
func (s *Services) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"postgres": s.Postgres.Ping,
	}
	if s.Redis != nil {
		checks["redis"] = s.Redis.Ping
	}
	if s.Elasticsearch != nil {
		checks["elasticsearch"] = s.Elasticsearch.Ping
	}
	return checks
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("failed to close dependency", map[string]interface{}{"error": err.Error()})
		}
	}
	s.closers = nil
}
