package proofstorage

import (
	"errors"
	"fmt"
	"time"

	"github.com/civixhq/civix/internal/pkg/constants"
	"github.com/civixhq/civix/internal/pkg/env"
)

// Config holds proof storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads proof storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_STORAGE_ENABLED", "false") == "true",
	}

	// Validate required fields if proof storage is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 storage is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if proof storage is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates a standardized object key for a proof photo.
// Format: proofs/YYYY/MM/UUID.ext
func (c *Config) GetObjectKey(proofUUID, fileExtension string, t time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s%s", constants.ProofsPath, t.Year(), int(t.Month()), proofUUID, fileExtension)
}

// GetThumbKey derives the thumbnail key from a proof object key
func (c *Config) GetThumbKey(proofUUID string, t time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s_thumb.jpg", constants.ProofsPath, t.Year(), int(t.Month()), proofUUID)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured
func (c *Config) GetBucketName() string {
	return c.BucketName
}
