package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

func TestGalleryRepoListsNewestFirst(t *testing.T) {
	repo := NewGalleryRepo()
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	older, err := repo.CreateBatch(ctx, model.Batch{CreatedAt: base, PhotoIDs: []string{"p1"}})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	newer, err := repo.CreateBatch(ctx, model.Batch{CreatedAt: base.Add(time.Hour), PhotoIDs: []string{"p2"}})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	batches, err := repo.ListBatches(ctx)
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 2 || batches[0].ID != newer.ID || batches[1].ID != older.ID {
		t.Fatalf("unexpected order: %+v", batches)
	}
}

func TestGalleryRepoDetachAndSweep(t *testing.T) {
	repo := NewGalleryRepo()
	ctx := context.Background()

	p1, _ := repo.CreatePhoto(ctx, model.Photo{MediaKey: "k1"})
	p2, _ := repo.CreatePhoto(ctx, model.Photo{MediaKey: "k2"})
	single, _ := repo.CreateBatch(ctx, model.Batch{PhotoIDs: []string{p1.ID}})
	pair, _ := repo.CreateBatch(ctx, model.Batch{PhotoIDs: []string{p1.ID, p2.ID}})

	touched, err := repo.RemovePhotoFromBatches(ctx, p1.ID)
	if err != nil {
		t.Fatalf("remove photo: %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("expected both batches touched, got %v", touched)
	}
	removed, err := repo.DeleteEmptyBatches(ctx)
	if err != nil {
		t.Fatalf("delete empty batches: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one empty batch removed, got %d", removed)
	}
	if _, err := repo.GetBatch(ctx, single.ID); !errors.Is(err, gallerysvc.ErrNotFound) {
		t.Fatalf("expected emptied batch to be gone, got %v", err)
	}

	got, err := repo.GetBatch(ctx, pair.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if len(got.PhotoIDs) != 1 || got.PhotoIDs[0] != p2.ID {
		t.Fatalf("unexpected photo ids: %v", got.PhotoIDs)
	}
}

func TestGalleryRepoDeleteBatchesIfEmptyIsScoped(t *testing.T) {
	repo := NewGalleryRepo()
	ctx := context.Background()

	p1, _ := repo.CreatePhoto(ctx, model.Photo{MediaKey: "k1"})
	target, _ := repo.CreateBatch(ctx, model.Batch{PhotoIDs: []string{p1.ID}})
	orphan, _ := repo.CreateBatch(ctx, model.Batch{})

	touched, err := repo.RemovePhotoFromBatches(ctx, p1.ID)
	if err != nil {
		t.Fatalf("remove photo: %v", err)
	}
	if len(touched) != 1 || touched[0] != target.ID {
		t.Fatalf("expected only %s touched, got %v", target.ID, touched)
	}

	removed, err := repo.DeleteBatchesIfEmpty(ctx, touched)
	if err != nil {
		t.Fatalf("delete batches if empty: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one batch removed, got %d", removed)
	}
	if _, err := repo.GetBatch(ctx, orphan.ID); err != nil {
		t.Fatalf("batch outside the scope must survive: %v", err)
	}
}

func TestGalleryRepoRejectsMalformedIDs(t *testing.T) {
	repo := NewGalleryRepo()
	ctx := context.Background()

	if _, err := repo.GetPhoto(ctx, "not-an-id"); !errors.Is(err, gallerysvc.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if err := repo.DeleteBatch(ctx, "42"); !errors.Is(err, gallerysvc.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := repo.GetPhoto(ctx, "9b2f7c0e-8d55-4a5c-9a55-3f0c2f1f0a11"); !errors.Is(err, gallerysvc.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestGalleryRepoReturnsCopies(t *testing.T) {
	repo := NewGalleryRepo()
	ctx := context.Background()

	batch, _ := repo.CreateBatch(ctx, model.Batch{PhotoIDs: []string{"a", "b"}})
	batch.PhotoIDs[0] = "mutated"

	got, _ := repo.GetBatch(ctx, batch.ID)
	if got.PhotoIDs[0] != "a" {
		t.Fatalf("caller mutation leaked into the repo: %v", got.PhotoIDs)
	}

	updated, err := repo.AppendBatchComment(ctx, batch.ID, model.Comment{Author: "Ana", Text: "hi"})
	if err != nil {
		t.Fatalf("append comment: %v", err)
	}
	if len(updated.Comments) != 1 {
		t.Fatalf("unexpected comments: %+v", updated.Comments)
	}
}
