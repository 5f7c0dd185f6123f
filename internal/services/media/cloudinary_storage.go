package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

var cloudinaryAllowedFormats = []string{"jpg", "jpeg", "png", "webp"}

// CloudinaryStorage keeps photos on Cloudinary. The object key is the Cloudinary public id.
type CloudinaryStorage struct {
	client *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStorage(client *cloudinary.Cloudinary, folder string) *CloudinaryStorage {
	return &CloudinaryStorage{
		client: client,
		folder: strings.Trim(strings.TrimSpace(folder), "/"),
	}
}

func (s *CloudinaryStorage) Upload(ctx context.Context, _ string, body io.Reader, size int64, _ string) (Object, error) {
	if s.client == nil {
		return Object{}, fmt.Errorf("cloudinary client is nil")
	}
	if body == nil || size <= 0 {
		return Object{}, ErrValidation
	}

	resp, err := s.client.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:       uuid.NewString(),
		Folder:         s.folder,
		AllowedFormats: cloudinaryAllowedFormats,
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload to cloudinary: %w", err)
	}
	if resp == nil {
		return Object{}, fmt.Errorf("upload to cloudinary: empty response")
	}
	if resp.Error.Message != "" {
		return Object{}, fmt.Errorf("upload to cloudinary: %s", resp.Error.Message)
	}
	if resp.PublicID == "" || resp.SecureURL == "" {
		return Object{}, fmt.Errorf("upload to cloudinary: response without public id or url")
	}

	return Object{Key: resp.PublicID, URL: resp.SecureURL}, nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return fmt.Errorf("cloudinary client is nil")
	}
	if key == "" {
		return nil
	}

	resp, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: key})
	if err != nil {
		return fmt.Errorf("destroy cloudinary asset: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("destroy cloudinary asset: empty response")
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("destroy cloudinary asset: %s", resp.Error.Message)
	}

	switch resp.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("destroy cloudinary asset: unexpected result %q", resp.Result)
	}
}
