package app

import (
	"context"
	"fmt"

	"github.com/RubachokBoss/evalmate/internal/config"
	"github.com/RubachokBoss/evalmate/internal/database"
	"github.com/RubachokBoss/evalmate/internal/repository"
	"github.com/rs/zerolog"
)

// newBlobStore opens the configured storage backend. The returned close func is never nil.
func newBlobStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.BlobStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Provider {
	case "minio":
		store, err := repository.NewMinIOBlobStore(
			cfg.MinIO.Endpoint,
			cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey,
			cfg.Storage.BucketName,
			cfg.Storage.Region,
			cfg.MinIO.UseSSL,
			cfg.MinIO.Timeout,
			log,
		)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "s3":
		store, err := repository.NewS3BlobStore(cfg.Storage.Region, cfg.S3.Profile, cfg.S3.Endpoint, cfg.Storage.BucketName, log)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "b2":
		store, err := repository.NewB2BlobStore(ctx, cfg.B2.AccountID, cfg.B2.ApplicationKey, cfg.Storage.BucketName, log)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case "postgres":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, nil, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Storage.Timeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		migrator, err := database.NewMigrator(cfg.Database)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, nil, err
		}

		log.Info().Msg("Database connection established")
		return repository.NewPostgresBlobStore(db, log), db.Close, nil

	case "bolt":
		store, err := repository.NewBoltBlobStore(cfg.Bolt.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "memory":
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return repository.NewMemoryBlobStore(), noop, nil
	}

	return nil, nil, fmt.Errorf("unknown storage provider: %q", cfg.Storage.Provider)
}
