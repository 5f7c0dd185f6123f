package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
)

const (
	OutcomeStored         = "stored"
	OutcomeMediaFailed    = "media_failed"
	OutcomeTimeout        = "timeout"
	OutcomeMetadataFailed = "metadata_failed"
	OutcomeEmpty          = "empty"

	reasonEmptyFile        = "file is empty"
	reasonMediaFailed      = "media upload failed"
	reasonMediaTimeout     = "media upload timed out"
	reasonMetadataFailed   = "metadata save failed"
	reasonCompensateFailed = "metadata save failed; media cleanup failed"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/png":  "image/png",
	"image/webp": "image/webp",
}

type UploadItem struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadFailure struct {
	FileName string
	Reason   string
}

// BatchUploadResult reports a batch upload. SuccessCount plus len(Failures) equals
// the number of submitted items; BatchID is empty when nothing was stored.
type BatchUploadResult struct {
	BatchID      string
	SuccessCount int
	Failures     []UploadFailure
}

type itemOutcome struct {
	photo   model.Photo
	failure *UploadFailure
}

// AllowedContentType normalizes a MIME type and reports whether it is an accepted image type.
func AllowedContentType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	normalized, ok := allowedContentTypes[strings.ToLower(mediaType)]
	return normalized, ok
}

// ValidateItems checks the whole-call limits. Nothing is uploaded when it fails.
// Empty files are not a whole-call violation; SubmitBatch reports them per item.
func ValidateItems(items []UploadItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	if len(items) > MaxItemsPerBatch {
		return fmt.Errorf("%w: at most %d files per upload", ErrTooManyItems, MaxItemsPerBatch)
	}

	for _, item := range items {
		if item.Size > MaxItemSize {
			return fmt.Errorf("%w: %q exceeds %d bytes", ErrItemTooLarge, item.FileName, MaxItemSize)
		}
		if _, ok := AllowedContentType(item.ContentType); !ok {
			return fmt.Errorf("%w: %q has type %q", ErrUnsupportedMediaType, item.FileName, item.ContentType)
		}
	}

	return nil
}

// SubmitBatch stores every item independently and groups the stored photos into one new
// batch. Per-item failures are reported in the result and never returned as an error.
func (s *Service) SubmitBatch(ctx context.Context, items []UploadItem, description string) (BatchUploadResult, error) {
	if err := ValidateItems(items); err != nil {
		return BatchUploadResult{}, err
	}
	if err := checkLength("batchDescription", description, MaxBatchDescriptionLength); err != nil {
		return BatchUploadResult{}, err
	}
	if s.store == nil || s.storage == nil {
		return BatchUploadResult{}, fmt.Errorf("gallery dependencies are not configured")
	}

	outcomes := make([]itemOutcome, len(items))

	var g errgroup.Group
	g.SetLimit(s.cfg.UploadConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			outcomes[i] = s.uploadItem(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchUploadResult{Failures: []UploadFailure{}}
	photoIDs := make([]string, 0, len(items))
	mediaKeys := make([]string, 0, len(items))
	for _, outcome := range outcomes {
		if outcome.failure != nil {
			result.Failures = append(result.Failures, *outcome.failure)
			continue
		}
		photoIDs = append(photoIDs, outcome.photo.ID)
		mediaKeys = append(mediaKeys, outcome.photo.MediaKey)
	}

	if len(photoIDs) == 0 {
		s.logger.Warn("batch upload stored no photos", zap.Int("items", len(items)))
		return result, nil
	}

	batch, err := s.store.CreateBatch(ctx, model.Batch{
		Description: description,
		PhotoIDs:    photoIDs,
		Comments:    []model.Comment{},
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("batch record could not be saved, uploaded media is orphaned",
			zap.Strings("photo_ids", photoIDs),
			zap.Strings("media_keys", mediaKeys),
			zap.Error(err),
		)
		return BatchUploadResult{}, fmt.Errorf("%w: %w", ErrBatchPersist, err)
	}

	s.invalidate(ctx)

	result.BatchID = batch.ID
	result.SuccessCount = len(photoIDs)

	s.logger.Info("batch uploaded",
		zap.String("batch_id", batch.ID),
		zap.Int("stored", result.SuccessCount),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}

func (s *Service) uploadItem(parent context.Context, item UploadItem) itemOutcome {
	if item.Body == nil || item.Size <= 0 {
		return s.failed(item.FileName, reasonEmptyFile, OutcomeEmpty)
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.ItemTimeout)
	defer cancel()

	contentType, _ := AllowedContentType(item.ContentType)

	obj, err := s.storage.Upload(ctx, item.FileName, item.Body, item.Size, contentType)
	if err != nil {
		reason, outcome := reasonMediaFailed, OutcomeMediaFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason, outcome = reasonMediaTimeout, OutcomeTimeout
		}
		s.logger.Warn("media upload failed", zap.String("filename", item.FileName), zap.Error(err))
		return s.failed(item.FileName, reason, outcome)
	}

	photo, err := s.store.CreatePhoto(ctx, model.Photo{
		MediaURL:  obj.URL,
		MediaKey:  obj.Key,
		Comments:  []model.Comment{},
		CreatedAt: s.now().UTC(),
	})
	if err == nil {
		s.recordUpload(OutcomeStored)
		return itemOutcome{photo: photo}
	}

	s.logger.Warn("photo metadata save failed, removing uploaded media",
		zap.String("filename", item.FileName),
		zap.String("media_key", obj.Key),
		zap.Error(err),
	)

	cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.ItemTimeout)
	defer cleanupCancel()
	if delErr := s.storage.Delete(cleanupCtx, obj.Key); delErr != nil {
		s.logger.Error("compensating media delete failed",
			zap.String("filename", item.FileName),
			zap.String("media_key", obj.Key),
			zap.Error(delErr),
		)
		s.mediaDeleteFailed("compensate_upload")
		return s.failed(item.FileName, reasonCompensateFailed, OutcomeMetadataFailed)
	}

	return s.failed(item.FileName, reasonMetadataFailed, OutcomeMetadataFailed)
}

func (s *Service) failed(fileName, reason, outcome string) itemOutcome {
	s.recordUpload(outcome)
	return itemOutcome{failure: &UploadFailure{FileName: fileName, Reason: reason}}
}

func (s *Service) recordUpload(outcome string) {
	if s.recorder != nil {
		s.recorder.UploadItem(outcome)
	}
}
