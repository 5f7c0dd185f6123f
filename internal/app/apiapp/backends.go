package apiapp

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
	cloudinaryinfra "github.com/honnyfrontend/joao-fotografo/internal/infra/cloudinary"
	s3infra "github.com/honnyfrontend/joao-fotografo/internal/infra/s3"
	"github.com/honnyfrontend/joao-fotografo/internal/jobs/cleanup"
	memrepo "github.com/honnyfrontend/joao-fotografo/internal/repo/memory"
	mongorepo "github.com/honnyfrontend/joao-fotografo/internal/repo/mongo"
	pgrepo "github.com/honnyfrontend/joao-fotografo/internal/repo/postgres"
	redrepo "github.com/honnyfrontend/joao-fotografo/internal/repo/redis"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
	mediasvc "github.com/honnyfrontend/joao-fotografo/internal/services/media"
)

// metadataBackend is the selected metadata store plus the client that owns its connections.
type metadataBackend struct {
	store    gallerysvc.Store
	mongo    *gomongo.Client
	postgres *pgxpool.Pool
	migrate  func(context.Context) error
}

func (b metadataBackend) close(ctx context.Context) error {
	if b.postgres != nil {
		b.postgres.Close()
	}
	if b.mongo != nil {
		if err := b.mongo.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect mongodb: %w", err)
		}
	}
	return nil
}

// openMetadata connects the configured metadata driver. A connection failure is returned
// together with a backend whose store reports errors, so the caller may run degraded.
func openMetadata(ctx context.Context, cfg config.Config) (metadataBackend, error) {
	switch cfg.Metadata.Driver {
	case config.MetadataDriverMemory:
		return metadataBackend{store: memrepo.NewGalleryRepo()}, nil

	case config.MetadataDriverPostgres:
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return metadataBackend{store: pgrepo.NewGalleryRepo(nil)}, err
		}
		repo := pgrepo.NewGalleryRepo(pool)
		return metadataBackend{store: repo, postgres: pool, migrate: repo.Migrate}, nil

	default:
		client, err := mongorepo.NewClient(ctx, cfg.Mongo.URI)
		if err != nil {
			return metadataBackend{store: mongorepo.NewGalleryRepo(nil)}, err
		}
		repo := mongorepo.NewGalleryRepo(client.Database(cfg.Mongo.Database))
		return metadataBackend{store: repo, mongo: client, migrate: repo.EnsureIndexes}, nil
	}
}

// openMedia builds the configured media store. Like openMetadata it returns a usable
// but failing store alongside a client construction error.
func openMedia(cfg config.Config) (mediasvc.Storage, *mediasvc.S3Storage, error) {
	switch cfg.Media.Driver {
	case config.MediaDriverMemory:
		return mediasvc.NewMemoryStorage(), nil, nil

	case config.MediaDriverS3:
		client, err := s3infra.NewClient(cfg.S3)
		storage := mediasvc.NewS3Storage(client, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
		return storage, storage, err

	default:
		client, err := cloudinaryinfra.NewClient(cloudinaryinfra.Config{
			CloudName: cfg.Cloudinary.CloudName,
			APIKey:    cfg.Cloudinary.APIKey,
			APISecret: cfg.Cloudinary.APISecret,
		})
		return mediasvc.NewCloudinaryStorage(client, cfg.Cloudinary.Folder), nil, err
	}
}

// Migrate applies the schema or indexes of the configured metadata driver.
func Migrate(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	backend, err := openMetadata(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s metadata store: %w", cfg.Metadata.Driver, err)
	}
	defer func() {
		if err := backend.close(context.Background()); err != nil && log != nil {
			log.Warn("close metadata store", zap.Error(err))
		}
	}()

	if backend.migrate == nil {
		if log != nil {
			log.Info("metadata driver needs no migration", zap.String("driver", cfg.Metadata.Driver))
		}
		return nil
	}
	if err := backend.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s metadata store: %w", cfg.Metadata.Driver, err)
	}

	if log != nil {
		log.Info("metadata store migrated", zap.String("driver", cfg.Metadata.Driver))
	}
	return nil
}

// EnsureBucket creates the S3 bucket when the s3 media driver is selected.
func EnsureBucket(ctx context.Context, cfg config.Config) error {
	if cfg.Media.Driver != config.MediaDriverS3 {
		return fmt.Errorf("media driver is %q, ensure-bucket needs %q", cfg.Media.Driver, config.MediaDriverS3)
	}

	_, s3Storage, err := openMedia(cfg)
	if err != nil {
		return err
	}
	return s3Storage.EnsureBucket(ctx)
}

// SweepEmptyBatches deletes batches without photos and drops the cached listing when any were removed.
func SweepEmptyBatches(ctx context.Context, cfg config.Config, log *zap.Logger) (int64, error) {
	backend, err := openMetadata(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("open %s metadata store: %w", cfg.Metadata.Driver, err)
	}
	defer func() {
		if err := backend.close(context.Background()); err != nil && log != nil {
			log.Warn("close metadata store", zap.Error(err))
		}
	}()

	service := gallerysvc.NewService(backend.store, nil, gallerysvc.Config{}, log)
	if client := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); client != nil {
		defer func() {
			_ = client.Close()
		}()
		service.AttachCache(redrepo.NewGalleryCacheRepo(client, cfg.Redis.ListingTTL))
	}

	return cleanup.New(service, log).Run(ctx)
}
