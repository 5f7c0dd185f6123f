package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrValidation = errors.New("validation error")

// Object is what a media host hands back for a stored image.
type Object struct {
	Key string
	URL string
}

// Storage is a media host. Delete must treat a missing object as success.
type Storage interface {
	Upload(ctx context.Context, fileName string, body io.Reader, size int64, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
}

func buildObjectKey(prefix, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".bin"
	}

	stamp := now.UTC().Format("20060102T150405")
	name := fmt.Sprintf("%s_%s%s", stamp, uuid.NewString(), ext)

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
