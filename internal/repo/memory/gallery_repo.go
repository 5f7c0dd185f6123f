package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

// GalleryRepo keeps photos and batches in process memory. It is used for local runs
// and tests; nothing survives a restart.
type GalleryRepo struct {
	mu      sync.RWMutex
	photos  map[string]model.Photo
	batches map[string]model.Batch
	now     func() time.Time
}

func NewGalleryRepo() *GalleryRepo {
	return &GalleryRepo{
		photos:  make(map[string]model.Photo),
		batches: make(map[string]model.Batch),
		now:     time.Now,
	}
}

func (r *GalleryRepo) CreatePhoto(_ context.Context, photo model.Photo) (model.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	photo.ID = uuid.NewString()
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = r.now().UTC()
	}
	photo = clonePhoto(photo)
	r.photos[photo.ID] = photo
	return clonePhoto(photo), nil
}

func (r *GalleryRepo) CreateBatch(_ context.Context, batch model.Batch) (model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch.ID = uuid.NewString()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = r.now().UTC()
	}
	batch = cloneBatch(batch)
	r.batches[batch.ID] = batch
	return cloneBatch(batch), nil
}

func (r *GalleryRepo) GetPhoto(_ context.Context, id string) (model.Photo, error) {
	if err := checkID(id); err != nil {
		return model.Photo{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	photo, ok := r.photos[id]
	if !ok {
		return model.Photo{}, gallerysvc.ErrNotFound
	}
	return clonePhoto(photo), nil
}

func (r *GalleryRepo) GetBatch(_ context.Context, id string) (model.Batch, error) {
	if err := checkID(id); err != nil {
		return model.Batch{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, ok := r.batches[id]
	if !ok {
		return model.Batch{}, gallerysvc.ErrNotFound
	}
	return cloneBatch(batch), nil
}

func (r *GalleryRepo) ListBatches(_ context.Context) ([]model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Batch, 0, len(r.batches))
	for _, batch := range r.batches {
		out = append(out, cloneBatch(batch))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *GalleryRepo) ListPhotosByIDs(_ context.Context, ids []string) ([]model.Photo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Photo, 0, len(ids))
	for _, id := range ids {
		if photo, ok := r.photos[id]; ok {
			out = append(out, clonePhoto(photo))
		}
	}
	return out, nil
}

func (r *GalleryRepo) UpdatePhotoDescription(_ context.Context, id, description string) (model.Photo, error) {
	if err := checkID(id); err != nil {
		return model.Photo{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	photo, ok := r.photos[id]
	if !ok {
		return model.Photo{}, gallerysvc.ErrNotFound
	}
	photo.Description = description
	r.photos[id] = photo
	return clonePhoto(photo), nil
}

func (r *GalleryRepo) UpdateBatchDescription(_ context.Context, id, description string) (model.Batch, error) {
	if err := checkID(id); err != nil {
		return model.Batch{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch, ok := r.batches[id]
	if !ok {
		return model.Batch{}, gallerysvc.ErrNotFound
	}
	batch.Description = description
	r.batches[id] = batch
	return cloneBatch(batch), nil
}

func (r *GalleryRepo) AppendPhotoComment(_ context.Context, id string, comment model.Comment) (model.Photo, error) {
	if err := checkID(id); err != nil {
		return model.Photo{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	photo, ok := r.photos[id]
	if !ok {
		return model.Photo{}, gallerysvc.ErrNotFound
	}
	photo = clonePhoto(photo)
	photo.Comments = append(photo.Comments, comment)
	r.photos[id] = photo
	return clonePhoto(photo), nil
}

func (r *GalleryRepo) AppendBatchComment(_ context.Context, id string, comment model.Comment) (model.Batch, error) {
	if err := checkID(id); err != nil {
		return model.Batch{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	batch, ok := r.batches[id]
	if !ok {
		return model.Batch{}, gallerysvc.ErrNotFound
	}
	batch = cloneBatch(batch)
	batch.Comments = append(batch.Comments, comment)
	r.batches[id] = batch
	return cloneBatch(batch), nil
}

func (r *GalleryRepo) RemovePhotoFromBatches(_ context.Context, photoID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := []string{}
	for id, batch := range r.batches {
		kept := make([]string, 0, len(batch.PhotoIDs))
		for _, pid := range batch.PhotoIDs {
			if pid != photoID {
				kept = append(kept, pid)
			}
		}
		if len(kept) == len(batch.PhotoIDs) {
			continue
		}
		batch.PhotoIDs = kept
		r.batches[id] = batch
		touched = append(touched, id)
	}
	return touched, nil
}

func (r *GalleryRepo) DeleteEmptyBatches(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, batch := range r.batches {
		if len(batch.PhotoIDs) == 0 {
			delete(r.batches, id)
			removed++
		}
	}
	return removed, nil
}

func (r *GalleryRepo) DeleteBatchesIfEmpty(_ context.Context, batchIDs []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for _, id := range batchIDs {
		batch, ok := r.batches[id]
		if ok && len(batch.PhotoIDs) == 0 {
			delete(r.batches, id)
			removed++
		}
	}
	return removed, nil
}

func (r *GalleryRepo) DeletePhoto(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.photos[id]; !ok {
		return gallerysvc.ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *GalleryRepo) DeleteBatch(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.batches[id]; !ok {
		return gallerysvc.ErrNotFound
	}
	delete(r.batches, id)
	return nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return gallerysvc.ErrInvalidID
	}
	return nil
}

func clonePhoto(photo model.Photo) model.Photo {
	photo.Comments = append([]model.Comment{}, photo.Comments...)
	return photo
}

func cloneBatch(batch model.Batch) model.Batch {
	batch.PhotoIDs = append([]string{}, batch.PhotoIDs...)
	batch.Comments = append([]model.Comment{}, batch.Comments...)
	return batch
}
