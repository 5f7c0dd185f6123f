package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

var schema = []string{
	`
CREATE TABLE IF NOT EXISTS gallery_photos (
	id UUID PRIMARY KEY,
	media_url TEXT NOT NULL,
	media_key TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	comments JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`
CREATE TABLE IF NOT EXISTS gallery_batches (
	id UUID PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	photo_ids UUID[] NOT NULL DEFAULT '{}',
	comments JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS gallery_batches_created_at_idx ON gallery_batches (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS gallery_batches_photo_ids_idx ON gallery_batches USING GIN (photo_ids)`,
}

const (
	photoColumns = `id::text, media_url, media_key, description, comments, created_at`
	batchColumns = `id::text, description, photo_ids::text[], comments, created_at`
)

type GalleryRepo struct {
	pool *pgxpool.Pool
}

type commentRow struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func NewGalleryRepo(pool *pgxpool.Pool) *GalleryRepo {
	return &GalleryRepo{pool: pool}
}

// Migrate creates the gallery tables and indexes if they do not exist.
func (r *GalleryRepo) Migrate(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	return withMigrationLock(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply gallery schema: %w", err)
			}
		}
		return nil
	})
}

func (r *GalleryRepo) CreatePhoto(ctx context.Context, photo model.Photo) (model.Photo, error) {
	if r.pool == nil {
		return model.Photo{}, fmt.Errorf("postgres pool is nil")
	}

	comments, err := encodeComments(photo.Comments)
	if err != nil {
		return model.Photo{}, err
	}

	created, err := scanPhoto(r.pool.QueryRow(ctx, `
INSERT INTO gallery_photos (id, media_url, media_key, description, comments, created_at)
VALUES ($1::uuid, $2, $3, $4, $5::jsonb, $6)
RETURNING `+photoColumns,
		uuid.NewString(), photo.MediaURL, photo.MediaKey, photo.Description, comments, createdAt(photo.CreatedAt)))
	if err != nil {
		return model.Photo{}, fmt.Errorf("insert photo: %w", err)
	}
	return created, nil
}

func (r *GalleryRepo) CreateBatch(ctx context.Context, batch model.Batch) (model.Batch, error) {
	if r.pool == nil {
		return model.Batch{}, fmt.Errorf("postgres pool is nil")
	}
	for _, id := range batch.PhotoIDs {
		if err := checkID(id); err != nil {
			return model.Batch{}, err
		}
	}

	comments, err := encodeComments(batch.Comments)
	if err != nil {
		return model.Batch{}, err
	}
	photoIDs := batch.PhotoIDs
	if photoIDs == nil {
		photoIDs = []string{}
	}

	created, err := scanBatch(r.pool.QueryRow(ctx, `
INSERT INTO gallery_batches (id, description, photo_ids, comments, created_at)
VALUES ($1::uuid, $2, $3::uuid[], $4::jsonb, $5)
RETURNING `+batchColumns,
		uuid.NewString(), batch.Description, photoIDs, comments, createdAt(batch.CreatedAt)))
	if err != nil {
		return model.Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return created, nil
}

func (r *GalleryRepo) GetPhoto(ctx context.Context, id string) (model.Photo, error) {
	if r.pool == nil {
		return model.Photo{}, fmt.Errorf("postgres pool is nil")
	}
	if err := checkID(id); err != nil {
		return model.Photo{}, err
	}

	photo, err := scanPhoto(r.pool.QueryRow(ctx, `SELECT `+photoColumns+` FROM gallery_photos WHERE id = $1::uuid`, id))
	if err != nil {
		return model.Photo{}, notFound("get photo", err)
	}
	return photo, nil
}

func (r *GalleryRepo) GetBatch(ctx context.Context, id string) (model.Batch, error) {
	if r.pool == nil {
		return model.Batch{}, fmt.Errorf("postgres pool is nil")
	}
	if err := checkID(id); err != nil {
		return model.Batch{}, err
	}

	batch, err := scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM gallery_batches WHERE id = $1::uuid`, id))
	if err != nil {
		return model.Batch{}, notFound("get batch", err)
	}
	return batch, nil
}

func (r *GalleryRepo) ListBatches(ctx context.Context) ([]model.Batch, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+batchColumns+`
FROM gallery_batches
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	batches := make([]model.Batch, 0)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

func (r *GalleryRepo) ListPhotosByIDs(ctx context.Context, ids []string) ([]model.Photo, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if checkID(id) == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []model.Photo{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+photoColumns+` FROM gallery_photos WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]model.Photo, 0, len(valid))
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

func (r *GalleryRepo) UpdatePhotoDescription(ctx context.Context, id, description string) (model.Photo, error) {
	return r.updatePhoto(ctx, id, `description = $2`, description)
}

func (r *GalleryRepo) UpdateBatchDescription(ctx context.Context, id, description string) (model.Batch, error) {
	return r.updateBatch(ctx, id, `description = $2`, description)
}

func (r *GalleryRepo) AppendPhotoComment(ctx context.Context, id string, comment model.Comment) (model.Photo, error) {
	raw, err := encodeComment(comment)
	if err != nil {
		return model.Photo{}, err
	}
	return r.updatePhoto(ctx, id, `comments = comments || jsonb_build_array($2::jsonb)`, raw)
}

func (r *GalleryRepo) AppendBatchComment(ctx context.Context, id string, comment model.Comment) (model.Batch, error) {
	raw, err := encodeComment(comment)
	if err != nil {
		return model.Batch{}, err
	}
	return r.updateBatch(ctx, id, `comments = comments || jsonb_build_array($2::jsonb)`, raw)
}

// RemovePhotoFromBatches detaches the photo and returns the ids of the batches that held it.
func (r *GalleryRepo) RemovePhotoFromBatches(ctx context.Context, photoID string) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if err := checkID(photoID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
UPDATE gallery_batches
SET photo_ids = array_remove(photo_ids, $1::uuid)
WHERE $1::uuid = ANY(photo_ids)
RETURNING id::text
`, photoID)
	if err != nil {
		return nil, fmt.Errorf("remove photo from batches: %w", err)
	}
	batchIDs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("remove photo from batches: %w", err)
	}
	return batchIDs, nil
}

func (r *GalleryRepo) DeleteEmptyBatches(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM gallery_batches WHERE cardinality(photo_ids) = 0`)
	if err != nil {
		return 0, fmt.Errorf("delete empty batches: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *GalleryRepo) DeleteBatchesIfEmpty(ctx context.Context, batchIDs []string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if len(batchIDs) == 0 {
		return 0, nil
	}
	for _, id := range batchIDs {
		if err := checkID(id); err != nil {
			return 0, err
		}
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM gallery_batches
WHERE id = ANY($1::uuid[]) AND cardinality(photo_ids) = 0
`, batchIDs)
	if err != nil {
		return 0, fmt.Errorf("delete empty batches: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *GalleryRepo) DeletePhoto(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "gallery_photos", id)
}

func (r *GalleryRepo) DeleteBatch(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "gallery_batches", id)
}

func (r *GalleryRepo) updatePhoto(ctx context.Context, id, set string, arg any) (model.Photo, error) {
	if r.pool == nil {
		return model.Photo{}, fmt.Errorf("postgres pool is nil")
	}
	if err := checkID(id); err != nil {
		return model.Photo{}, err
	}

	photo, err := scanPhoto(r.pool.QueryRow(ctx,
		`UPDATE gallery_photos SET `+set+` WHERE id = $1::uuid RETURNING `+photoColumns, id, arg))
	if err != nil {
		return model.Photo{}, notFound("update photo", err)
	}
	return photo, nil
}

func (r *GalleryRepo) updateBatch(ctx context.Context, id, set string, arg any) (model.Batch, error) {
	if r.pool == nil {
		return model.Batch{}, fmt.Errorf("postgres pool is nil")
	}
	if err := checkID(id); err != nil {
		return model.Batch{}, err
	}

	batch, err := scanBatch(r.pool.QueryRow(ctx,
		`UPDATE gallery_batches SET `+set+` WHERE id = $1::uuid RETURNING `+batchColumns, id, arg))
	if err != nil {
		return model.Batch{}, notFound("update batch", err)
	}
	return batch, nil
}

// deleteByID only ever receives the two table names above.
func (r *GalleryRepo) deleteByID(ctx context.Context, table, id string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if err := checkID(id); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return gallerysvc.ErrNotFound
	}
	return nil
}

func scanPhoto(row rowScanner) (model.Photo, error) {
	var (
		photo    model.Photo
		comments []byte
	)
	if err := row.Scan(&photo.ID, &photo.MediaURL, &photo.MediaKey, &photo.Description, &comments, &photo.CreatedAt); err != nil {
		return model.Photo{}, err
	}

	decoded, err := decodeComments(comments)
	if err != nil {
		return model.Photo{}, err
	}
	photo.Comments = decoded
	photo.CreatedAt = photo.CreatedAt.UTC()
	return photo, nil
}

func scanBatch(row rowScanner) (model.Batch, error) {
	var (
		batch    model.Batch
		comments []byte
	)
	if err := row.Scan(&batch.ID, &batch.Description, &batch.PhotoIDs, &comments, &batch.CreatedAt); err != nil {
		return model.Batch{}, err
	}
	if batch.PhotoIDs == nil {
		batch.PhotoIDs = []string{}
	}

	decoded, err := decodeComments(comments)
	if err != nil {
		return model.Batch{}, err
	}
	batch.Comments = decoded
	batch.CreatedAt = batch.CreatedAt.UTC()
	return batch, nil
}

func encodeComment(c model.Comment) (string, error) {
	raw, err := json.Marshal(commentRow{Author: c.Author, Text: c.Text, CreatedAt: c.CreatedAt.UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal comment: %w", err)
	}
	return string(raw), nil
}

func encodeComments(comments []model.Comment) (string, error) {
	rows := make([]commentRow, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, commentRow{Author: c.Author, Text: c.Text, CreatedAt: c.CreatedAt.UTC()})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal comments: %w", err)
	}
	return string(raw), nil
}

func decodeComments(raw []byte) ([]model.Comment, error) {
	out := make([]model.Comment, 0)
	if len(raw) == 0 {
		return out, nil
	}

	var rows []commentRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	for _, row := range rows {
		out = append(out, model.Comment{Author: row.Author, Text: row.Text, CreatedAt: row.CreatedAt.UTC()})
	}
	return out, nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return gallerysvc.ErrInvalidID
	}
	return nil
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return gallerysvc.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
