package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
)

func jpegItem(name string, size int) UploadItem {
	return UploadItem{
		FileName:    name,
		ContentType: "image/jpeg",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte{0xff}, size)),
	}
}

func newTestService(store *fakeStore, storage *fakeStorage) *Service {
	return NewService(store, storage, Config{UploadConcurrency: 4, ItemTimeout: time.Second}, nil)
}

func TestSubmitBatchStoresAllItemsInInputOrder(t *testing.T) {
	store := newFakeStore()
	storage := newFakeStorage()
	storage.jitter = true
	svc := newTestService(store, storage)

	items := make([]UploadItem, 0, MaxItemsPerBatch)
	for i := 0; i < MaxItemsPerBatch; i++ {
		items = append(items, jpegItem(fmt.Sprintf("photo-%02d.jpg", i), 16))
	}

	result, err := svc.SubmitBatch(context.Background(), items, "Wedding")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	if result.SuccessCount != MaxItemsPerBatch || len(result.Failures) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	batch, err := store.GetBatch(context.Background(), result.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Description != "Wedding" {
		t.Fatalf("unexpected description: %q", batch.Description)
	}
	if len(batch.PhotoIDs) != MaxItemsPerBatch {
		t.Fatalf("unexpected photo count: %d", len(batch.PhotoIDs))
	}
	for i, id := range batch.PhotoIDs {
		photo, err := store.GetPhoto(context.Background(), id)
		if err != nil {
			t.Fatalf("get photo %s: %v", id, err)
		}
		want := fmt.Sprintf("photo-%02d.jpg", i)
		if !strings.HasSuffix(photo.MediaKey, want) {
			t.Fatalf("photo %d out of input order: key %s want suffix %s", i, photo.MediaKey, want)
		}
	}
}

func TestSubmitBatchReportsFailedPushWithoutAffectingOthers(t *testing.T) {
	store := newFakeStore()
	storage := newFakeStorage()
	storage.failUpload["b.jpg"] = true
	recorder := newFakeRecorder()
	svc := newTestService(store, storage)
	svc.AttachRecorder(recorder)

	result, err := svc.SubmitBatch(context.Background(), []UploadItem{
		jpegItem("a.jpg", 4),
		jpegItem("b.jpg", 4),
		jpegItem("c.jpg", 4),
	}, "")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}

	if result.SuccessCount != 2 {
		t.Fatalf("unexpected success count: %d", result.SuccessCount)
	}
	if len(result.Failures) != 1 || result.Failures[0].FileName != "b.jpg" || result.Failures[0].Reason != reasonMediaFailed {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
	if len(store.photos) != 2 {
		t.Fatalf("failed item must not create a photo, got %d photos", len(store.photos))
	}

	batch, _ := store.GetBatch(context.Background(), result.BatchID)
	if len(batch.PhotoIDs) != result.SuccessCount {
		t.Fatalf("batch photo ids %d do not match success count %d", len(batch.PhotoIDs), result.SuccessCount)
	}
	if recorder.outcomes[OutcomeStored] != 2 || recorder.outcomes[OutcomeMediaFailed] != 1 {
		t.Fatalf("unexpected recorded outcomes: %v", recorder.outcomes)
	}
}

func TestSubmitBatchCompensatesWhenMetadataSaveFails(t *testing.T) {
	store := newFakeStore()
	store.failPhoto = func(p model.Photo) bool { return strings.HasSuffix(p.MediaKey, "b.jpg") }
	storage := newFakeStorage()
	svc := newTestService(store, storage)

	result, err := svc.SubmitBatch(context.Background(), []UploadItem{
		jpegItem("a.jpg", 4),
		jpegItem("b.jpg", 4),
	}, "")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}

	if result.SuccessCount != 1 || len(result.Failures) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Failures[0].Reason != reasonMetadataFailed {
		t.Fatalf("unexpected reason: %q", result.Failures[0].Reason)
	}
	if storage.count() != 1 {
		t.Fatalf("orphaned media object must be removed, %d objects left", storage.count())
	}
}

func TestSubmitBatchReportsFailedCompensation(t *testing.T) {
	store := newFakeStore()
	store.failPhoto = func(model.Photo) bool { return true }
	storage := newFakeStorage()
	storage.failDelete["a.jpg"] = true
	recorder := newFakeRecorder()
	svc := newTestService(store, storage)
	svc.AttachRecorder(recorder)

	result, err := svc.SubmitBatch(context.Background(), []UploadItem{jpegItem("a.jpg", 4)}, "")
	if err != nil {
		t.Fatalf("total failure must not be an error: %v", err)
	}
	if result.BatchID != "" || result.SuccessCount != 0 {
		t.Fatalf("expected no batch, got %+v", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].Reason != reasonCompensateFailed {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
	if recorder.deleteFailure["compensate_upload"] != 1 {
		t.Fatalf("expected compensation failure to be recorded: %v", recorder.deleteFailure)
	}
}

func TestSubmitBatchCreatesNoBatchWhenEverythingFails(t *testing.T) {
	store := newFakeStore()
	storage := newFakeStorage()
	storage.failUpload["a.jpg"] = true
	storage.failUpload["b.png"] = true
	svc := newTestService(store, storage)

	result, err := svc.SubmitBatch(context.Background(), []UploadItem{
		jpegItem("a.jpg", 4),
		{FileName: "b.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")},
	}, "nothing")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}

	if result.BatchID != "" || result.SuccessCount != 0 || len(result.Failures) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.batches) != 0 {
		t.Fatalf("no batch must be created, got %d", len(store.batches))
	}
	if result.Failures[0].FileName != "a.jpg" || result.Failures[1].FileName != "b.png" {
		t.Fatalf("failures must follow input order: %+v", result.Failures)
	}
}

func TestSubmitBatchTimesOutHungItem(t *testing.T) {
	store := newFakeStore()
	storage := newFakeStorage()
	storage.blockUpload["slow.jpg"] = true
	svc := NewService(store, storage, Config{UploadConcurrency: 2, ItemTimeout: 20 * time.Millisecond}, nil)

	result, err := svc.SubmitBatch(context.Background(), []UploadItem{
		jpegItem("slow.jpg", 4),
		jpegItem("fast.jpg", 4),
	}, "")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}

	if result.SuccessCount != 1 {
		t.Fatalf("unexpected success count: %d", result.SuccessCount)
	}
	if len(result.Failures) != 1 || result.Failures[0].Reason != reasonMediaTimeout {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
}

func TestSubmitBatchFailsWholeCallWhenBatchCannotBeSaved(t *testing.T) {
	store := newFakeStore()
	store.failBatch = errors.New("server selection timeout")
	storage := newFakeStorage()
	svc := newTestService(store, storage)

	_, err := svc.SubmitBatch(context.Background(), []UploadItem{jpegItem("a.jpg", 4)}, "")
	if !errors.Is(err, ErrBatchPersist) {
		t.Fatalf("expected ErrBatchPersist, got %v", err)
	}
	if storage.count() != 1 {
		t.Fatalf("media is left in place after a late store outage, got %d objects", storage.count())
	}
}

func TestSubmitBatchRejectsLimitViolationsBeforeUpload(t *testing.T) {
	tooMany := make([]UploadItem, 0, MaxItemsPerBatch+1)
	for i := 0; i <= MaxItemsPerBatch; i++ {
		tooMany = append(tooMany, jpegItem(fmt.Sprintf("%d.jpg", i), 4))
	}

	cases := []struct {
		name  string
		items []UploadItem
		want  error
	}{
		{name: "no items", items: nil, want: ErrNoItems},
		{name: "eleven items", items: tooMany, want: ErrTooManyItems},
		{name: "one byte over cap", items: []UploadItem{jpegItem("big.jpg", MaxItemSize+1)}, want: ErrItemTooLarge},
		{name: "text file", items: []UploadItem{{FileName: "b.txt", ContentType: "text/plain", Size: 4, Body: strings.NewReader("text")}}, want: ErrUnsupportedMediaType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := newFakeStorage()
			svc := newTestService(newFakeStore(), storage)

			_, err := svc.SubmitBatch(context.Background(), tc.items, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if storage.uploadCalls != 0 {
				t.Fatalf("no upload may be attempted, got %d", storage.uploadCalls)
			}
		})
	}
}

func TestSubmitBatchReportsEmptyFileWithoutAffectingOthers(t *testing.T) {
	store := newFakeStore()
	storage := newFakeStorage()
	recorder := newFakeRecorder()
	svc := newTestService(store, storage)
	svc.AttachRecorder(recorder)

	items := []UploadItem{
		jpegItem("a.jpg", 8),
		{FileName: "b.jpg", ContentType: "image/jpeg", Size: 0, Body: strings.NewReader("")},
	}
	result, err := svc.SubmitBatch(context.Background(), items, "")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	if result.SuccessCount != 1 || result.BatchID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].FileName != "b.jpg" || result.Failures[0].Reason != reasonEmptyFile {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
	if storage.uploadCalls != 1 {
		t.Fatalf("empty file must not be pushed, got %d uploads", storage.uploadCalls)
	}
	if recorder.outcomes[OutcomeEmpty] != 1 || recorder.outcomes[OutcomeStored] != 1 {
		t.Fatalf("unexpected recorded outcomes: %v", recorder.outcomes)
	}
}

func TestSubmitBatchAcceptsFileAtSizeCap(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeStorage())

	result, err := svc.SubmitBatch(context.Background(), []UploadItem{jpegItem("exact.jpg", MaxItemSize)}, "")
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	if result.SuccessCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitBatchRejectsLongDescription(t *testing.T) {
	storage := newFakeStorage()
	svc := newTestService(newFakeStore(), storage)

	_, err := svc.SubmitBatch(context.Background(), []UploadItem{jpegItem("a.jpg", 4)}, strings.Repeat("x", MaxBatchDescriptionLength+1))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if storage.uploadCalls != 0 {
		t.Fatalf("no upload may be attempted, got %d", storage.uploadCalls)
	}
}

func TestSubmitBatchInvalidatesListingCache(t *testing.T) {
	cache := &fakeCache{hit: true}
	svc := newTestService(newFakeStore(), newFakeStorage())
	svc.AttachCache(cache)

	if _, err := svc.SubmitBatch(context.Background(), []UploadItem{jpegItem("a.jpg", 4)}, ""); err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	if cache.invalidates != 1 {
		t.Fatalf("expected one cache invalidation, got %d", cache.invalidates)
	}
}

func TestAllowedContentType(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"image/jpeg":                {want: "image/jpeg", ok: true},
		"IMAGE/JPG":                 {want: "image/jpeg", ok: true},
		"image/png":                 {want: "image/png", ok: true},
		"image/webp; charset=utf-8": {want: "image/webp", ok: true},
		"image/gif":                 {ok: false},
		"text/plain":                {ok: false},
		"":                          {ok: false},
	}

	for input, tc := range cases {
		got, ok := AllowedContentType(input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("AllowedContentType(%q) = %q, %v; want %q, %v", input, got, ok, tc.want, tc.ok)
		}
	}
}
