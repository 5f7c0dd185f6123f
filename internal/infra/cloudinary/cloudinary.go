package cloudinary

import (
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
)

type Config struct {
	CloudName string
	APIKey    string
	APISecret string
}

func NewClient(cfg Config) (*cloudinary.Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary cloud name, api key and api secret are required")
	}

	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	client.Config.URL.Secure = true

	return client, nil
}
