package media

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStorage keeps uploads in process memory. It backs the "memory" media driver
// used for local runs and tests.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string][]byte),
		now:     time.Now,
	}
}

func (s *MemoryStorage) Upload(ctx context.Context, fileName string, body io.Reader, size int64, _ string) (Object, error) {
	if body == nil || size <= 0 {
		return Object{}, ErrValidation
	}

	data, err := io.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return Object{}, fmt.Errorf("read upload body: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	key := buildObjectKey("memory", fileName, s.now())

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return Object{Key: key, URL: "memory://" + key}, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
