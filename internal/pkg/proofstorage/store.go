// Package proofstorage keeps resolution proof photos in S3-compatible object
// storage. Every stored proof gets a JPEG thumbnail for list views, and the
// EXIF capture time is extracted where the photo carries one.
package proofstorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

const (
	// ThumbnailWidth is the target width for proof thumbnails; height follows
	// the aspect ratio.
	ThumbnailWidth = 480

	// MaxProofSize caps a single proof upload at 10 MB.
	MaxProofSize = 10 * 1024 * 1024
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// Store wraps the S3 client with proof-specific functionality
type Store struct {
	s3Client *s3.Client
	config   *Config
}

// StoredProof describes a persisted proof photo
type StoredProof struct {
	Key         string
	ThumbKey    string
	Size        int64
	ContentType string
	TakenAt     *time.Time
}

// NewStore creates a new proof storage client
func NewStore(cfg *Config) (*Store, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("S3 proof storage is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			// MinIO and other S3-compatible services need path-style URLs
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	store := &Store{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := store.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[ProofStorage] Successfully initialized S3 client for bucket: %s", cfg.GetBucketName())
	return store, nil
}

// testConnection tests the S3 connection by checking if the bucket exists
func (s *Store) testConnection() error {
	ctx := context.Background()
	bucketName := s.config.GetBucketName()

	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})

	if err != nil {
		// If bucket doesn't exist, try to create it (for development)
		if GetAppEnv() != "prod" {
			log.Warnf("[ProofStorage] Bucket %s not found, attempting to create it", bucketName)
			return s.createBucket(bucketName)
		}
		return fmt.Errorf("bucket %s not accessible: %w", bucketName, err)
	}

	return nil
}

// createBucket creates a new S3 bucket (dev/staging only)
func (s *Store) createBucket(bucketName string) error {
	ctx := context.Background()

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}

	// For AWS regions other than us-east-1 we need the location constraint;
	// S3-compatible services don't want one.
	if s.config.EndpointURL == "" && s.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.config.Region),
		}
	}

	_, err := s.s3Client.CreateBucket(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
	}

	log.Infof("[ProofStorage] Successfully created bucket: %s", bucketName)
	return nil
}

// StoreProof persists a proof photo and its thumbnail, returning the object
// keys and any EXIF capture time found in the photo.
func (s *Store) StoreProof(ctx context.Context, reader io.Reader, originalName string) (*StoredProof, error) {
	data, err := io.ReadAll(io.LimitReader(reader, MaxProofSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read proof upload: %w", err)
	}
	if len(data) > MaxProofSize {
		return nil, fmt.Errorf("proof photo exceeds the %d byte limit", MaxProofSize)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	contentType := getContentType(ext)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("unsupported proof file type %q", ext)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode proof image: %w", err)
	}

	now := time.Now()
	proofUUID := uuid.New().String()
	key := s.config.GetObjectKey(proofUUID, ext, now)
	thumbKey := s.config.GetThumbKey(proofUUID, now)

	if err := s.putObject(ctx, key, contentType, data); err != nil {
		return nil, err
	}

	thumb := imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	var thumbBuf bytes.Buffer
	if err := imaging.Encode(&thumbBuf, thumb, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, fmt.Errorf("failed to encode proof thumbnail: %w", err)
	}
	if err := s.putObject(ctx, thumbKey, "image/jpeg", thumbBuf.Bytes()); err != nil {
		return nil, err
	}

	stored := &StoredProof{
		Key:         key,
		ThumbKey:    thumbKey,
		Size:        int64(len(data)),
		ContentType: contentType,
		TakenAt:     extractTakenAt(data),
	}

	log.Infof("[ProofStorage] Stored proof s3://%s/%s (%d bytes)", s.config.GetBucketName(), key, stored.Size)
	return stored, nil
}

// extractTakenAt pulls the EXIF capture time out of the photo bytes. Photos
// without EXIF data (screenshots, stripped uploads) simply have no capture
// time; that is not an error.
func extractTakenAt(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if dt, err := x.DateTime(); err == nil {
		return &dt
	}
	return nil
}

func (s *Store) putObject(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.GetBucketName()),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"upload-source": "civix-proof",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Open streams a stored proof back out. The caller must close the reader.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.GetBucketName()),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object from S3: %w", err)
	}
	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return result.Body, contentType, nil
}

// Delete removes a stored proof object
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.GetBucketName()),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	log.Infof("[ProofStorage] Deleted s3://%s/%s", s.config.GetBucketName(), key)
	return nil
}

// ObjectExists checks if an object exists in S3
func (s *Store) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.GetBucketName()),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// getContentType returns the MIME type based on file extension
func getContentType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
