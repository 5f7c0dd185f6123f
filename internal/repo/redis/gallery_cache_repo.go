package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	gallerysvc "github.com/honnyfrontend/joao-fotografo/internal/services/gallery"
)

const (
	galleryListingKey      = "gallery:listing"
	galleryGenerationKey   = "gallery:listing:generation"
	defaultListingCacheTTL = 5 * time.Minute
)

var errStaleListing = errors.New("gallery listing generation changed")

// GalleryCacheRepo caches the resolved listing next to a generation counter.
// Invalidation bumps the counter, and a listing is stored only under the generation it was read at.
type GalleryCacheRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewGalleryCacheRepo(client *goredis.Client, ttl time.Duration) *GalleryCacheRepo {
	if ttl <= 0 {
		ttl = defaultListingCacheTTL
	}
	return &GalleryCacheRepo{client: client, ttl: ttl}
}

func (r *GalleryCacheRepo) GetListing(ctx context.Context) ([]gallerysvc.BatchView, int64, bool, error) {
	if r.client == nil {
		return nil, 0, false, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.MGet(ctx, galleryListingKey, galleryGenerationKey).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("get gallery listing: %w", err)
	}

	generation, err := parseGeneration(values[1])
	if err != nil {
		return nil, 0, false, err
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, generation, false, nil
	}

	var views []gallerysvc.BatchView
	if err := json.Unmarshal([]byte(raw), &views); err != nil {
		return nil, 0, false, fmt.Errorf("decode gallery listing: %w", err)
	}
	if views == nil {
		views = []gallerysvc.BatchView{}
	}
	return views, generation, true, nil
}

// SetListing stores views only while the generation still equals the one they were read under.
// A stale listing is dropped without error.
func (r *GalleryCacheRepo) SetListing(ctx context.Context, generation int64, views []gallerysvc.BatchView) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	raw, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("encode gallery listing: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, galleryGenerationKey).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("get gallery listing generation: %w", err)
		}
		if current != generation {
			return errStaleListing
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, galleryListingKey, raw, r.ttl)
			return nil
		})
		return err
	}, galleryGenerationKey)

	switch {
	case err == nil, errors.Is(err, errStaleListing), errors.Is(err, goredis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("set gallery listing: %w", err)
	}
}

func (r *GalleryCacheRepo) InvalidateListing(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, galleryGenerationKey)
		pipe.Del(ctx, galleryListingKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate gallery listing: %w", err)
	}
	return nil
}

func parseGeneration(value any) (int64, error) {
	raw, ok := value.(string)
	if !ok {
		return 0, nil
	}
	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse gallery listing generation %q: %w", raw, err)
	}
	return generation, nil
}
