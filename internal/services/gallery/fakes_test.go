package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	mediasvc "github.com/honnyfrontend/joao-fotografo/internal/services/media"
)

type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	clock   time.Time
	photos  map[string]model.Photo
	batches map[string]model.Batch

	failPhoto func(model.Photo) bool
	failBatch error

	// afterListPhotos runs once, after ListPhotosByIDs has read its snapshot.
	afterListPhotos func()

	fullSweeps   int
	scopedSweeps [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:   time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC),
		photos:  make(map[string]model.Photo),
		batches: make(map[string]model.Batch),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreatePhoto(_ context.Context, photo model.Photo) (model.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPhoto != nil && f.failPhoto(photo) {
		return model.Photo{}, errors.New("insert photo: connection reset")
	}
	photo.ID = f.id("photo")
	f.photos[photo.ID] = photo
	return photo, nil
}

func (f *fakeStore) CreateBatch(_ context.Context, batch model.Batch) (model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch != nil {
		return model.Batch{}, f.failBatch
	}
	batch.ID = f.id("batch")
	f.clock = f.clock.Add(time.Minute)
	batch.CreatedAt = f.clock
	batch.PhotoIDs = append([]string(nil), batch.PhotoIDs...)
	f.batches[batch.ID] = batch
	return batch, nil
}

func (f *fakeStore) GetPhoto(_ context.Context, id string) (model.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	photo, ok := f.photos[id]
	if !ok {
		return model.Photo{}, ErrNotFound
	}
	return photo, nil
}

func (f *fakeStore) GetBatch(_ context.Context, id string) (model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[id]
	if !ok {
		return model.Batch{}, ErrNotFound
	}
	return batch, nil
}

func (f *fakeStore) ListBatches(_ context.Context) ([]model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Batch, 0, len(f.batches))
	for _, batch := range f.batches {
		out = append(out, batch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListPhotosByIDs(_ context.Context, ids []string) ([]model.Photo, error) {
	f.mu.Lock()
	out := make([]model.Photo, 0, len(ids))
	for _, id := range ids {
		if photo, ok := f.photos[id]; ok {
			out = append(out, photo)
		}
	}
	hook := f.afterListPhotos
	f.afterListPhotos = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) UpdatePhotoDescription(_ context.Context, id, description string) (model.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	photo, ok := f.photos[id]
	if !ok {
		return model.Photo{}, ErrNotFound
	}
	photo.Description = description
	f.photos[id] = photo
	return photo, nil
}

func (f *fakeStore) UpdateBatchDescription(_ context.Context, id, description string) (model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[id]
	if !ok {
		return model.Batch{}, ErrNotFound
	}
	batch.Description = description
	f.batches[id] = batch
	return batch, nil
}

func (f *fakeStore) AppendPhotoComment(_ context.Context, id string, comment model.Comment) (model.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	photo, ok := f.photos[id]
	if !ok {
		return model.Photo{}, ErrNotFound
	}
	photo.Comments = append(photo.Comments, comment)
	f.photos[id] = photo
	return photo, nil
}

func (f *fakeStore) AppendBatchComment(_ context.Context, id string, comment model.Comment) (model.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[id]
	if !ok {
		return model.Batch{}, ErrNotFound
	}
	batch.Comments = append(batch.Comments, comment)
	f.batches[id] = batch
	return batch, nil
}

func (f *fakeStore) RemovePhotoFromBatches(_ context.Context, photoID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var touched []string
	for id, batch := range f.batches {
		kept := batch.PhotoIDs[:0:0]
		for _, pid := range batch.PhotoIDs {
			if pid != photoID {
				kept = append(kept, pid)
			}
		}
		if len(kept) == len(batch.PhotoIDs) {
			continue
		}
		batch.PhotoIDs = kept
		f.batches[id] = batch
		touched = append(touched, id)
	}
	return touched, nil
}

func (f *fakeStore) DeleteBatchesIfEmpty(_ context.Context, batchIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopedSweeps = append(f.scopedSweeps, append([]string(nil), batchIDs...))
	var removed int64
	for _, id := range batchIDs {
		if batch, ok := f.batches[id]; ok && len(batch.PhotoIDs) == 0 {
			delete(f.batches, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) DeleteEmptyBatches(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullSweeps++
	var removed int64
	for id, batch := range f.batches {
		if len(batch.PhotoIDs) == 0 {
			delete(f.batches, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) DeletePhoto(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.photos[id]; !ok {
		return ErrNotFound
	}
	delete(f.photos, id)
	return nil
}

func (f *fakeStore) DeleteBatch(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.batches[id]; !ok {
		return ErrNotFound
	}
	delete(f.batches, id)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]string
	seq     int

	uploadCalls int
	deleteCalls int

	failUpload  map[string]bool
	blockUpload map[string]bool
	failDelete  map[string]bool
	jitter      bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:     make(map[string]string),
		failUpload:  make(map[string]bool),
		blockUpload: make(map[string]bool),
		failDelete:  make(map[string]bool),
	}
}

func (f *fakeStorage) Upload(ctx context.Context, fileName string, body io.Reader, _ int64, _ string) (mediasvc.Object, error) {
	f.mu.Lock()
	f.uploadCalls++
	fail := f.failUpload[fileName]
	block := f.blockUpload[fileName]
	jitter := f.jitter
	f.mu.Unlock()

	if jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	if block {
		<-ctx.Done()
		return mediasvc.Object{}, fmt.Errorf("put object: %w", ctx.Err())
	}
	if fail {
		return mediasvc.Object{}, errors.New("upstream returned 503")
	}
	if _, err := io.ReadAll(body); err != nil {
		return mediasvc.Object{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	key := fmt.Sprintf("key-%d-%s", f.seq, fileName)
	f.objects[key] = fileName
	return mediasvc.Object{Key: key, URL: "https://media.local/" + key}, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.failDelete[f.objects[key]] {
		return errors.New("destroy asset: 500")
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeCache struct {
	views       []BatchView
	hit         bool
	generation  int64
	sets        int
	staleSets   int
	invalidates int
}

func (f *fakeCache) GetListing(_ context.Context) ([]BatchView, int64, bool, error) {
	return f.views, f.generation, f.hit, nil
}

func (f *fakeCache) SetListing(_ context.Context, generation int64, views []BatchView) error {
	if generation != f.generation {
		f.staleSets++
		return nil
	}
	f.sets++
	f.views = views
	f.hit = true
	return nil
}

func (f *fakeCache) InvalidateListing(_ context.Context) error {
	f.invalidates++
	f.generation++
	f.hit = false
	f.views = nil
	return nil
}

type fakeRecorder struct {
	mu            sync.Mutex
	outcomes      map[string]int
	deleteFailure map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: map[string]int{}, deleteFailure: map[string]int{}}
}

func (f *fakeRecorder) UploadItem(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[outcome]++
}

func (f *fakeRecorder) MediaDeleteFailed(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteFailure[operation]++
}
