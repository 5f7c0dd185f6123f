package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
	"github.com/honnyfrontend/joao-fotografo/internal/infra/metrics"
	redrepo "github.com/honnyfrontend/joao-fotografo/internal/repo/redis"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	metadata   metadataBackend
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.New()
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, cfg, appMetrics)

	metadata, err := openMetadata(ctx, cfg)
	if err != nil {
		log.Warn("metadata store init failed, continuing in degraded mode",
			zap.String("driver", cfg.Metadata.Driver),
			zap.Error(err),
		)
	} else if cfg.Metadata.AutoMigrate && metadata.migrate != nil {
		if err := metadata.migrate(ctx); err != nil {
			log.Warn("metadata store migration failed", zap.String("driver", cfg.Metadata.Driver), zap.Error(err))
		}
	}

	storage, s3Storage, err := openMedia(cfg)
	if err != nil {
		log.Warn("media store init failed, continuing in degraded mode",
			zap.String("driver", cfg.Media.Driver),
			zap.Error(err),
		)
	} else if s3Storage != nil {
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Warn("s3 bucket check failed", zap.Error(err))
		}
	}

	galleryService := gallerysvc.NewService(metadata.store, storage, gallerysvc.Config{
		UploadConcurrency:    cfg.Gallery.UploadConcurrency,
		ItemTimeout:          cfg.Gallery.ItemTimeout,
		DefaultCommentAuthor: cfg.Gallery.DefaultCommentAuthor,
	}, log)

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if redisClient != nil {
		galleryService.AttachCache(redrepo.NewGalleryCacheRepo(redisClient, cfg.Redis.ListingTTL))
	} else {
		log.Info("redis address is empty, gallery listing cache disabled")
	}
	if appMetrics != nil {
		galleryService.AttachRecorder(appMetrics)
	}

	RegisterRoutes(r, Dependencies{
		GalleryService: galleryService,
		Metrics:        appMetrics,
		Logger:         log,
		Config:         cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		metadata:   metadata,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started",
		zap.String("addr", a.cfg.HTTP.Addr),
		zap.String("metadata_driver", a.cfg.Metadata.Driver),
		zap.String("media_driver", a.cfg.Media.Driver),
	)
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if err := a.metadata.close(ctx); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
