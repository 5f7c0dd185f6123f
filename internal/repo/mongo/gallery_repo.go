package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	gomongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/honnyfrontend/joao-fotografo/internal/domain/model"
	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

const (
	photosCollection  = "photos"
	batchesCollection = "batches"
)

type GalleryRepo struct {
	photos  *gomongo.Collection
	batches *gomongo.Collection
}

type commentDoc struct {
	Author    string    `bson:"author"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
}

type photoDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	MediaURL    string             `bson:"mediaUrl"`
	MediaKey    string             `bson:"mediaKey"`
	Description string             `bson:"description"`
	Comments    []commentDoc       `bson:"comments"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

type batchDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Description string               `bson:"description"`
	PhotoIDs    []primitive.ObjectID `bson:"photoIds"`
	Comments    []commentDoc         `bson:"comments"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

func NewGalleryRepo(db *gomongo.Database) *GalleryRepo {
	if db == nil {
		return &GalleryRepo{}
	}
	return &GalleryRepo{
		photos:  db.Collection(photosCollection),
		batches: db.Collection(batchesCollection),
	}
}

// EnsureIndexes creates the indexes the gallery queries rely on. It is idempotent.
func (r *GalleryRepo) EnsureIndexes(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}

	if _, err := r.photos.Indexes().CreateMany(ctx, []gomongo.IndexModel{
		{Keys: bson.D{{Key: "mediaKey", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create photo indexes: %w", err)
	}

	if _, err := r.batches.Indexes().CreateMany(ctx, []gomongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "photoIds", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create batch indexes: %w", err)
	}

	return nil
}

func (r *GalleryRepo) CreatePhoto(ctx context.Context, photo model.Photo) (model.Photo, error) {
	if err := r.ready(); err != nil {
		return model.Photo{}, err
	}

	doc := photoDoc{
		ID:          primitive.NewObjectID(),
		MediaURL:    photo.MediaURL,
		MediaKey:    photo.MediaKey,
		Description: photo.Description,
		Comments:    toCommentDocs(photo.Comments),
		CreatedAt:   createdAt(photo.CreatedAt),
	}
	if _, err := r.photos.InsertOne(ctx, doc); err != nil {
		return model.Photo{}, fmt.Errorf("insert photo: %w", err)
	}

	return doc.toModel(), nil
}

func (r *GalleryRepo) CreateBatch(ctx context.Context, batch model.Batch) (model.Batch, error) {
	if err := r.ready(); err != nil {
		return model.Batch{}, err
	}

	photoIDs := make([]primitive.ObjectID, 0, len(batch.PhotoIDs))
	for _, id := range batch.PhotoIDs {
		oid, err := parseID(id)
		if err != nil {
			return model.Batch{}, err
		}
		photoIDs = append(photoIDs, oid)
	}

	doc := batchDoc{
		ID:          primitive.NewObjectID(),
		Description: batch.Description,
		PhotoIDs:    photoIDs,
		Comments:    toCommentDocs(batch.Comments),
		CreatedAt:   createdAt(batch.CreatedAt),
	}
	if _, err := r.batches.InsertOne(ctx, doc); err != nil {
		return model.Batch{}, fmt.Errorf("insert batch: %w", err)
	}

	return doc.toModel(), nil
}

func (r *GalleryRepo) GetPhoto(ctx context.Context, id string) (model.Photo, error) {
	if err := r.ready(); err != nil {
		return model.Photo{}, err
	}
	oid, err := parseID(id)
	if err != nil {
		return model.Photo{}, err
	}

	var doc photoDoc
	if err := r.photos.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return model.Photo{}, notFound("find photo", err)
	}
	return doc.toModel(), nil
}

func (r *GalleryRepo) GetBatch(ctx context.Context, id string) (model.Batch, error) {
	if err := r.ready(); err != nil {
		return model.Batch{}, err
	}
	oid, err := parseID(id)
	if err != nil {
		return model.Batch{}, err
	}

	var doc batchDoc
	if err := r.batches.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return model.Batch{}, notFound("find batch", err)
	}
	return doc.toModel(), nil
}

func (r *GalleryRepo) ListBatches(ctx context.Context) ([]model.Batch, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.batches.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find batches: %w", err)
	}

	var docs []batchDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode batches: %w", err)
	}

	out := make([]model.Batch, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toModel())
	}
	return out, nil
}

func (r *GalleryRepo) ListPhotosByIDs(ctx context.Context, ids []string) ([]model.Photo, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []model.Photo{}, nil
	}

	cursor, err := r.photos.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("find photos: %w", err)
	}

	var docs []photoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode photos: %w", err)
	}

	out := make([]model.Photo, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toModel())
	}
	return out, nil
}

func (r *GalleryRepo) UpdatePhotoDescription(ctx context.Context, id, description string) (model.Photo, error) {
	return r.updatePhoto(ctx, id, bson.M{"$set": bson.M{"description": description}})
}

func (r *GalleryRepo) UpdateBatchDescription(ctx context.Context, id, description string) (model.Batch, error) {
	return r.updateBatch(ctx, id, bson.M{"$set": bson.M{"description": description}})
}

func (r *GalleryRepo) AppendPhotoComment(ctx context.Context, id string, comment model.Comment) (model.Photo, error) {
	return r.updatePhoto(ctx, id, bson.M{"$push": bson.M{"comments": toCommentDoc(comment)}})
}

func (r *GalleryRepo) AppendBatchComment(ctx context.Context, id string, comment model.Comment) (model.Batch, error) {
	return r.updateBatch(ctx, id, bson.M{"$push": bson.M{"comments": toCommentDoc(comment)}})
}

// RemovePhotoFromBatches pulls the photo and returns the ids of the batches that held it.
func (r *GalleryRepo) RemovePhotoFromBatches(ctx context.Context, photoID string) ([]string, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	oid, err := parseID(photoID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"photoIds": oid}
	cursor, err := r.batches.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("find batches holding photo: %w", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode batch ids: %w", err)
	}
	if len(docs) == 0 {
		return []string{}, nil
	}

	touched := make([]string, 0, len(docs))
	for _, doc := range docs {
		touched = append(touched, doc.ID.Hex())
	}
	if _, err := r.batches.UpdateMany(ctx, filter, bson.M{"$pull": bson.M{"photoIds": oid}}); err != nil {
		return nil, fmt.Errorf("pull photo from batches: %w", err)
	}
	return touched, nil
}

func (r *GalleryRepo) DeleteEmptyBatches(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	res, err := r.batches.DeleteMany(ctx, bson.M{"photoIds": bson.M{"$size": 0}})
	if err != nil {
		return 0, fmt.Errorf("delete empty batches: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *GalleryRepo) DeleteBatchesIfEmpty(ctx context.Context, batchIDs []string) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if len(batchIDs) == 0 {
		return 0, nil
	}

	oids := make([]primitive.ObjectID, 0, len(batchIDs))
	for _, id := range batchIDs {
		oid, err := parseID(id)
		if err != nil {
			return 0, err
		}
		oids = append(oids, oid)
	}

	res, err := r.batches.DeleteMany(ctx, bson.M{
		"_id":      bson.M{"$in": oids},
		"photoIds": bson.M{"$size": 0},
	})
	if err != nil {
		return 0, fmt.Errorf("delete empty batches: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *GalleryRepo) DeletePhoto(ctx context.Context, id string) error {
	return r.deleteOne(ctx, r.photos, id, "photo")
}

func (r *GalleryRepo) DeleteBatch(ctx context.Context, id string) error {
	return r.deleteOne(ctx, r.batches, id, "batch")
}

func (r *GalleryRepo) updatePhoto(ctx context.Context, id string, update bson.M) (model.Photo, error) {
	if err := r.ready(); err != nil {
		return model.Photo{}, err
	}
	oid, err := parseID(id)
	if err != nil {
		return model.Photo{}, err
	}

	var doc photoDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.photos.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return model.Photo{}, notFound("update photo", err)
	}
	return doc.toModel(), nil
}

func (r *GalleryRepo) updateBatch(ctx context.Context, id string, update bson.M) (model.Batch, error) {
	if err := r.ready(); err != nil {
		return model.Batch{}, err
	}
	oid, err := parseID(id)
	if err != nil {
		return model.Batch{}, err
	}

	var doc batchDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.batches.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return model.Batch{}, notFound("update batch", err)
	}
	return doc.toModel(), nil
}

func (r *GalleryRepo) deleteOne(ctx context.Context, coll *gomongo.Collection, id, kind string) error {
	if err := r.ready(); err != nil {
		return err
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if res.DeletedCount == 0 {
		return gallerysvc.ErrNotFound
	}
	return nil
}

func (r *GalleryRepo) ready() error {
	if r.photos == nil || r.batches == nil {
		return fmt.Errorf("mongodb database is nil")
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, gallerysvc.ErrInvalidID
	}
	return oid, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, gomongo.ErrNoDocuments) {
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

func toCommentDoc(c model.Comment) commentDoc {
	return commentDoc{Author: c.Author, Text: c.Text, CreatedAt: c.CreatedAt.UTC()}
}

func toCommentDocs(comments []model.Comment) []commentDoc {
	out := make([]commentDoc, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentDoc(c))
	}
	return out
}

func fromCommentDocs(docs []commentDoc) []model.Comment {
	out := make([]model.Comment, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Comment{Author: d.Author, Text: d.Text, CreatedAt: d.CreatedAt.UTC()})
	}
	return out
}

func (d photoDoc) toModel() model.Photo {
	return model.Photo{
		ID:          d.ID.Hex(),
		MediaURL:    d.MediaURL,
		MediaKey:    d.MediaKey,
		Description: d.Description,
		Comments:    fromCommentDocs(d.Comments),
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

func (d batchDoc) toModel() model.Batch {
	ids := make([]string, 0, len(d.PhotoIDs))
	for _, oid := range d.PhotoIDs {
		ids = append(ids, oid.Hex())
	}
	return model.Batch{
		ID:          d.ID.Hex(),
		Description: d.Description,
		PhotoIDs:    ids,
		Comments:    fromCommentDocs(d.Comments),
		CreatedAt:   d.CreatedAt.UTC(),
	}
}
