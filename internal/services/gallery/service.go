package gallery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	"github.com/honnyfrontend/joao-fotografo/internal/pkg/validate"
	mediasvc "github.com/honnyfrontend/joao-fotografo/internal/services/media"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidID            = errors.New("invalid id")
	ErrNotFound             = errors.New("not found")
	ErrNoItems              = errors.New("no files uploaded")
	ErrTooManyItems         = errors.New("too many files")
	ErrItemTooLarge         = errors.New("file too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMediaDelete          = errors.New("media delete failed, metadata retained")
	ErrBatchPersist         = errors.New("batch record could not be saved")
)

const (
	MaxItemsPerBatch = 10
	MaxItemSize      = 5 << 20 // 5 MiB

	MaxPhotoDescriptionLength = 500
	MaxBatchDescriptionLength = 1000
	MaxCommentTextLength      = 1000
	MaxCommentAuthorLength    = 100

	defaultCommentAuthor = "Visitante"
	defaultItemTimeout   = 30 * time.Second
	defaultConcurrency   = 4
)

// Store is the metadata store. Implementations return ErrNotFound for unknown ids
// and ErrInvalidID for ids they cannot parse.
type Store interface {
	CreatePhoto(ctx context.Context, photo model.Photo) (model.Photo, error)
	CreateBatch(ctx context.Context, batch model.Batch) (model.Batch, error)
	GetPhoto(ctx context.Context, id string) (model.Photo, error)
	GetBatch(ctx context.Context, id string) (model.Batch, error)
	// ListBatches returns every batch, newest first.
	ListBatches(ctx context.Context) ([]model.Batch, error)
	ListPhotosByIDs(ctx context.Context, ids []string) ([]model.Photo, error)
	UpdatePhotoDescription(ctx context.Context, id, description string) (model.Photo, error)
	UpdateBatchDescription(ctx context.Context, id, description string) (model.Batch, error)
	AppendPhotoComment(ctx context.Context, id string, comment model.Comment) (model.Photo, error)
	AppendBatchComment(ctx context.Context, id string, comment model.Comment) (model.Batch, error)
	// RemovePhotoFromBatches returns the ids of the batches the photo was removed from.
	RemovePhotoFromBatches(ctx context.Context, photoID string) ([]string, error)
	DeleteEmptyBatches(ctx context.Context) (int64, error)
	DeleteBatchesIfEmpty(ctx context.Context, batchIDs []string) (int64, error)
	DeletePhoto(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, id string) error
}

// Cache holds the resolved gallery listing. Errors are logged and never fail a request.
// Every invalidation advances a generation; SetListing must drop a listing whose
// generation is no longer current, since it was read before the invalidating write.
type Cache interface {
	GetListing(ctx context.Context) (views []BatchView, generation int64, ok bool, err error)
	SetListing(ctx context.Context, generation int64, views []BatchView) error
	InvalidateListing(ctx context.Context) error
}

type Recorder interface {
	UploadItem(outcome string)
	MediaDeleteFailed(operation string)
}

type Config struct {
	UploadConcurrency    int
	ItemTimeout          time.Duration
	DefaultCommentAuthor string
}

type Service struct {
	store    Store
	storage  mediasvc.Storage
	cache    Cache
	recorder Recorder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// BatchView is a batch with its photos resolved in photoIds order.
type BatchView struct {
	model.Batch
	Photos []model.Photo `json:"photos"`
}

type DeleteBatchResult struct {
	BatchID        string
	DeletedPhotos  int
	FailedPhotoIDs []string
}

func NewService(store Store, storage mediasvc.Storage, cfg Config, logger *zap.Logger) *Service {
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultConcurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	if strings.TrimSpace(cfg.DefaultCommentAuthor) == "" {
		cfg.DefaultCommentAuthor = defaultCommentAuthor
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:   store,
		storage: storage,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) AttachCache(cache Cache) {
	s.cache = cache
}

func (s *Service) AttachRecorder(recorder Recorder) {
	s.recorder = recorder
}

func (s *Service) ListBatches(ctx context.Context) ([]BatchView, error) {
	if s.store == nil {
		return nil, fmt.Errorf("gallery store is not configured")
	}

	cacheable := false
	var generation int64
	if s.cache != nil {
		views, gen, ok, err := s.cache.GetListing(ctx)
		switch {
		case err != nil:
			s.logger.Warn("read gallery listing cache", zap.Error(err))
		case ok:
			return views, nil
		default:
			cacheable = true
			generation = gen
		}
	}

	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, batch := range batches {
		for _, id := range batch.PhotoIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	byID := make(map[string]model.Photo, len(ids))
	if len(ids) > 0 {
		photos, err := s.store.ListPhotosByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("list photos: %w", err)
		}
		for _, photo := range photos {
			byID[photo.ID] = normalizePhoto(photo)
		}
	}

	views := make([]BatchView, 0, len(batches))
	for _, batch := range batches {
		batch = normalizeBatch(batch)
		photos := make([]model.Photo, 0, len(batch.PhotoIDs))
		for _, id := range batch.PhotoIDs {
			if photo, ok := byID[id]; ok {
				photos = append(photos, photo)
			}
		}
		views = append(views, BatchView{Batch: batch, Photos: photos})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	if cacheable {
		if err := s.cache.SetListing(ctx, generation, views); err != nil {
			s.logger.Warn("write gallery listing cache", zap.Error(err))
		}
	}

	return views, nil
}

func (s *Service) UpdatePhotoDescription(ctx context.Context, id, description string) (model.Photo, error) {
	if err := checkLength("description", description, MaxPhotoDescriptionLength); err != nil {
		return model.Photo{}, err
	}

	photo, err := s.store.UpdatePhotoDescription(ctx, id, description)
	if err != nil {
		return model.Photo{}, fmt.Errorf("update photo description: %w", err)
	}

	s.invalidate(ctx)
	return normalizePhoto(photo), nil
}

func (s *Service) UpdateBatchDescription(ctx context.Context, id, description string) (model.Batch, error) {
	if err := checkLength("description", description, MaxBatchDescriptionLength); err != nil {
		return model.Batch{}, err
	}

	batch, err := s.store.UpdateBatchDescription(ctx, id, description)
	if err != nil {
		return model.Batch{}, fmt.Errorf("update batch description: %w", err)
	}

	s.invalidate(ctx)
	return normalizeBatch(batch), nil
}

func (s *Service) AddPhotoComment(ctx context.Context, id, author, text string) (model.Photo, error) {
	comment, err := s.newComment(author, text)
	if err != nil {
		return model.Photo{}, err
	}

	photo, err := s.store.AppendPhotoComment(ctx, id, comment)
	if err != nil {
		return model.Photo{}, fmt.Errorf("append photo comment: %w", err)
	}

	s.invalidate(ctx)
	return normalizePhoto(photo), nil
}

func (s *Service) AddBatchComment(ctx context.Context, id, author, text string) (model.Batch, error) {
	comment, err := s.newComment(author, text)
	if err != nil {
		return model.Batch{}, err
	}

	batch, err := s.store.AppendBatchComment(ctx, id, comment)
	if err != nil {
		return model.Batch{}, fmt.Errorf("append batch comment: %w", err)
	}

	s.invalidate(ctx)
	return normalizeBatch(batch), nil
}

// DeletePhoto removes the media object first and only then the metadata, so a photo
// record never points at a deleted object.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return fmt.Errorf("get photo: %w", err)
	}

	if err := s.storage.Delete(ctx, photo.MediaKey); err != nil {
		s.logger.Error("delete photo media failed, metadata retained",
			zap.String("photo_id", photo.ID),
			zap.String("media_key", photo.MediaKey),
			zap.Error(err),
		)
		s.mediaDeleteFailed("delete_photo")
		return fmt.Errorf("%w: %w", ErrMediaDelete, err)
	}

	touched, err := s.store.RemovePhotoFromBatches(ctx, photo.ID)
	if err != nil {
		return fmt.Errorf("detach photo from batches: %w", err)
	}
	if err := s.store.DeletePhoto(ctx, photo.ID); err != nil {
		return fmt.Errorf("delete photo record: %w", err)
	}

	s.dropEmptiedBatches(ctx, touched)
	s.invalidate(ctx)

	s.logger.Info("photo deleted", zap.String("photo_id", photo.ID), zap.String("media_key", photo.MediaKey))
	return nil
}

// DeleteBatch deletes every photo of the batch best-effort and then the batch itself.
// A photo whose media object could not be removed keeps its record.
func (s *Service) DeleteBatch(ctx context.Context, id string) (DeleteBatchResult, error) {
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return DeleteBatchResult{}, fmt.Errorf("get batch: %w", err)
	}

	result := DeleteBatchResult{BatchID: batch.ID, FailedPhotoIDs: []string{}}
	touched := map[string]struct{}{}
	for _, photoID := range batch.PhotoIDs {
		ok, err := s.deleteBatchPhoto(ctx, photoID, touched)
		if err != nil {
			s.logger.Warn("cascade photo delete failed",
				zap.String("batch_id", batch.ID),
				zap.String("photo_id", photoID),
				zap.Error(err),
			)
			result.FailedPhotoIDs = append(result.FailedPhotoIDs, photoID)
			continue
		}
		if ok {
			result.DeletedPhotos++
		}
	}

	if err := s.store.DeleteBatch(ctx, batch.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return result, fmt.Errorf("delete batch record: %w", err)
	}

	delete(touched, batch.ID)
	others := make([]string, 0, len(touched))
	for id := range touched {
		others = append(others, id)
	}
	s.dropEmptiedBatches(ctx, others)
	s.invalidate(ctx)

	s.logger.Info("batch deleted",
		zap.String("batch_id", batch.ID),
		zap.Int("deleted_photos", result.DeletedPhotos),
		zap.Int("failed_photos", len(result.FailedPhotoIDs)),
	)
	return result, nil
}

// deleteBatchPhoto records in touched every batch the photo was detached from.
func (s *Service) deleteBatchPhoto(ctx context.Context, photoID string, touched map[string]struct{}) (bool, error) {
	photo, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get photo: %w", err)
	}

	if err := s.storage.Delete(ctx, photo.MediaKey); err != nil {
		s.mediaDeleteFailed("delete_batch")
		return false, fmt.Errorf("%w: %w", ErrMediaDelete, err)
	}
	batchIDs, err := s.store.RemovePhotoFromBatches(ctx, photo.ID)
	if err != nil {
		return false, fmt.Errorf("detach photo from batches: %w", err)
	}
	for _, id := range batchIDs {
		touched[id] = struct{}{}
	}
	if err := s.store.DeletePhoto(ctx, photo.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete photo record: %w", err)
	}

	return true, nil
}

// SweepEmptyBatches removes batches left without photos, for example by an interrupted cascade.
func (s *Service) SweepEmptyBatches(ctx context.Context) (int64, error) {
	removed, err := s.store.DeleteEmptyBatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete empty batches: %w", err)
	}
	if removed > 0 {
		s.invalidate(ctx)
	}
	return removed, nil
}

// dropEmptiedBatches deletes those of batchIDs that a delete left without photos.
func (s *Service) dropEmptiedBatches(ctx context.Context, batchIDs []string) {
	if len(batchIDs) == 0 {
		return
	}
	removed, err := s.store.DeleteBatchesIfEmpty(ctx, batchIDs)
	if err != nil {
		s.logger.Warn("delete empty batches", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("empty batches removed", zap.Int64("count", removed))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateListing(ctx); err != nil {
		s.logger.Warn("invalidate gallery listing cache", zap.Error(err))
	}
}

func (s *Service) mediaDeleteFailed(operation string) {
	if s.recorder != nil {
		s.recorder.MediaDeleteFailed(operation)
	}
}

func (s *Service) newComment(author, text string) (model.Comment, error) {
	text = strings.TrimSpace(text)
	if !validate.Required(text) {
		return model.Comment{}, fmt.Errorf("%w: comment text is required", ErrValidation)
	}
	if err := checkLength("text", text, MaxCommentTextLength); err != nil {
		return model.Comment{}, err
	}

	author = strings.TrimSpace(author)
	if !validate.Required(author) {
		author = s.cfg.DefaultCommentAuthor
	}
	if err := checkLength("author", author, MaxCommentAuthorLength); err != nil {
		return model.Comment{}, err
	}

	return model.Comment{
		Author:    author,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}, nil
}

func checkLength(field, value string, limit int) error {
	if !validate.MaxLength(value, limit) {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, limit)
	}
	return nil
}

func normalizePhoto(photo model.Photo) model.Photo {
	if photo.Comments == nil {
		photo.Comments = []model.Comment{}
	}
	return photo
}

func normalizeBatch(batch model.Batch) model.Batch {
	if batch.PhotoIDs == nil {
		batch.PhotoIDs = []string{}
	}
	if batch.Comments == nil {
		batch.Comments = []model.Comment{}
	}
	return batch
}
