package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mahamart/commerce-backend/internal/observability"
)

const productImagePrefix = "products"

var (
	ErrImageTooBig          = errors.New("image exceeds the size limit")
	ErrInvalidImageType     = errors.New("invalid file type, only JPEG, PNG, GIF and WebP images are allowed")
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrUploadFailed         = errors.New("failed to upload file")
	ErrDeleteFailed         = errors.New("failed to delete file")
	ErrStorageDisabled      = errors.New("object storage is not configured")

	allowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

type StoredObject struct {
	Key string
	URL string
}

// ImageStorage stores product images in an object store.
type ImageStorage interface {
	UploadProductImage(ctx context.Context, file io.Reader, size int64) (StoredObject, error)
	DeleteObject(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type MinIOStorageService struct {
	client        *minio.Client
	bucketName    string
	publicBaseURL string
	maxBytes      int64
	initOnce      sync.Once
	initErr       error
}

// NewMinIOStorageService creates a MinIO-backed storage service. Bucket
// creation is deferred until the first upload so startup never blocks on the
// object store.
func NewMinIOStorageService(endpoint, accessKey, secretKey, bucketName, publicBaseURL string, useSSL bool, maxBytes int64) (*MinIOStorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if publicBaseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicBaseURL = scheme + "://" + endpoint
	}
	return &MinIOStorageService{
		client:        client,
		bucketName:    bucketName,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
	}, nil
}

func (s *MinIOStorageService) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureBucketExists(ctx)
	})
	return s.initErr
}

func (s *MinIOStorageService) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}
	return nil
}

// UploadProductImage validates the image by its leading bytes, not by the
// client-supplied content type, and stores it under products/<uuid><ext>.
func (s *MinIOStorageService) UploadProductImage(ctx context.Context, file io.Reader, size int64) (obj StoredObject, err error) {
	defer func() { observability.RecordStorageOperation(ctx, "upload", storageOutcome(err)) }()

	if s.maxBytes > 0 && size > s.maxBytes {
		return StoredObject{}, ErrImageTooBig
	}
	contentType, ext, head, err := sniffImage(file)
	if err != nil {
		return StoredObject{}, err
	}
	if err := s.lazyInit(ctx); err != nil {
		return StoredObject{}, err
	}

	key := fmt.Sprintf("%s/%s%s", productImagePrefix, uuid.New().String(), ext)
	metadata := map[string]string{
		"Detected-Content-Type": contentType,
		"Uploaded-At":           time.Now().UTC().Format(time.RFC3339),
	}
	_, err = s.client.PutObject(ctx, s.bucketName, key, io.MultiReader(bytes.NewReader(head), file), size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return StoredObject{Key: key, URL: s.publicURL(key)}, nil
}

func (s *MinIOStorageService) DeleteObject(ctx context.Context, key string) (err error) {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	defer func() { observability.RecordStorageOperation(ctx, "delete", storageOutcome(err)) }()
	if strings.Contains(key, "..") || !strings.HasPrefix(key, productImagePrefix+"/") {
		return fmt.Errorf("%w: unexpected object key", ErrDeleteFailed)
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Ping reports whether the object store is reachable.
func (s *MinIOStorageService) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func (s *MinIOStorageService) publicURL(key string) string {
	return s.publicBaseURL + "/" + s.bucketName + "/" + key
}

// DisabledImageStorage is used when MINIO_ENDPOINT is unset. Catalog reads keep
// working; image uploads fail.
type DisabledImageStorage struct{}

func (DisabledImageStorage) UploadProductImage(context.Context, io.Reader, int64) (StoredObject, error) {
	return StoredObject{}, ErrStorageDisabled
}

func (DisabledImageStorage) DeleteObject(context.Context, string) error { return nil }

func (DisabledImageStorage) Ping(context.Context) error { return ErrStorageDisabled }

func sniffImage(file io.Reader) (contentType, ext string, head []byte, err error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", "", nil, fmt.Errorf("%w: read file for content detection: %v", ErrUploadFailed, err)
	}
	buf = buf[:n]
	contentType = strings.ToLower(strings.TrimSpace(http.DetectContentType(buf)))
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", "", nil, ErrInvalidImageType
	}
	return contentType, ext, buf, nil
}

func storageOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrImageTooBig), errors.Is(err, ErrInvalidImageType):
		return "rejected"
	default:
		return "error"
	}
}
