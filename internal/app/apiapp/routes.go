package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
	"github.com/honnyfrontend/joao-fotografo/internal/infra/metrics"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
	"github.com/honnyfrontend/joao-fotografo/internal/transport/http/handlers"
)

type Dependencies struct {
	GalleryService *gallerysvc.Service
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	galleryHandler := handlers.NewGalleryHandler(deps.GalleryService, deps.Logger, !deps.Config.IsProduction())

	r.Get("/healthz", healthHandler.Get)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	galleryRoutes := func(r chi.Router) {
		r.Post("/upload", galleryHandler.Upload)
		r.Get("/photos", galleryHandler.ListPhotos)
		r.Patch("/photos/{id}", galleryHandler.PatchPhoto)
		r.Delete("/photos/{id}", galleryHandler.DeletePhoto)
		r.Post("/photos/{id}/comments", galleryHandler.AddPhotoComment)
		r.Patch("/batches/{id}/description", galleryHandler.PatchBatchDescription)
		r.Delete("/batches/{id}", galleryHandler.DeleteBatch)
		r.Post("/batches/{id}/comments", galleryHandler.AddBatchComment)
	}

	galleryRoutes(r)
	r.Route("/api", galleryRoutes)
}
