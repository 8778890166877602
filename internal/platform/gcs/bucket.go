package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// ArtifactStore persists evaluation artifacts to object storage.
// Evaluation runs treat upload failures as non-fatal.
type ArtifactStore interface {
	UploadJSON(ctx context.Context, key string, payload any) error
	SignedURL(key string, expires time.Duration) (string, error)
	BucketName() string
}

type artifactStore struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

// NewArtifactStoreFromEnv builds an ArtifactStore when
// EVALUATION_GCS_BUCKET_NAME is set. Returns (nil, nil) when unset so
// callers can skip artifact export entirely.
func NewArtifactStoreFromEnv(ctx context.Context, log *logger.Logger) (ArtifactStore, error) {
	bucketName := strings.TrimSpace(os.Getenv("EVALUATION_GCS_BUCKET_NAME"))
	if bucketName == "" {
		log.Info("Evaluation artifact export disabled; EVALUATION_GCS_BUCKET_NAME not set")
		return nil, nil
	}

	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if host := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); host != "" {
		opts = []option.ClientOption{option.WithoutAuthentication()}
	}

	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "ArtifactStore")
	serviceLog.Info("Evaluation artifact export enabled", "bucket", bucketName)

	return &artifactStore{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucketName,
	}, nil
}

func (s *artifactStore) BucketName() string { return s.bucketName }

func (s *artifactStore) UploadJSON(ctx context.Context, key string, payload any) error {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("artifact key required")
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %q: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.storageClient.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write artifact to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (s *artifactStore) SignedURL(key string, expires time.Duration) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("artifact key required")
	}
	if expires <= 0 {
		expires = 7 * 24 * time.Hour
	}
	url, err := s.storageClient.Bucket(s.bucketName).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expires),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign artifact url %q: %w", key, err)
	}
	return url, nil
}
