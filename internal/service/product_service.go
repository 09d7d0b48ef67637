package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
	"github.com/mahamart/commerce-backend/internal/repository"
)

const maxProductNameLength = 120

type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Stock       int
}

// ImageUpload is an image file taken from a multipart form.
type ImageUpload struct {
	File io.Reader
	Size int64
}

type ProductService struct {
	repo     repository.ProductRepository
	storage  ImageStorage
	cache    ProductListCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewProductService(repo repository.ProductRepository, storage ImageStorage, cache ProductListCache, cacheTTL time.Duration, logger *slog.Logger) *ProductService {
	if cache == nil {
		cache = NewNoopProductListCache()
	}
	return &ProductService{repo: repo, storage: storage, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func (s *ProductService) Create(ctx context.Context, in ProductInput, image *ImageUpload) (product *domain.Product, err error) {
	start := time.Now()
	defer func() { observability.RecordProductOperation(ctx, "create", operationOutcome(err), time.Since(start)) }()

	in, err = validateProductInput(in, image)
	if err != nil {
		return nil, err
	}
	obj, err := s.upload(ctx, image)
	if err != nil {
		return nil, err
	}

	product = &domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    &obj.URL,
		ImageKey:    obj.Key,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		s.discardObject(ctx, obj.Key)
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to create product", err)
	}
	s.invalidate(ctx)
	return product, nil
}

// List returns one catalog page, served from the list cache when possible. An
// empty page is a NotFound.
func (s *ProductService) List(ctx context.Context, page, limit int) (items []domain.Product, err error) {
	start := time.Now()
	defer func() { observability.RecordProductOperation(ctx, "list", operationOutcome(err), time.Since(start)) }()

	req := repository.PageRequest{Page: page, PageSize: limit}.Normalize()
	if cached, ok, cacheErr := s.cache.Get(ctx, req.Page, req.PageSize); cacheErr != nil {
		observability.RecordProductCacheEvent(ctx, "error")
		s.logger.WarnContext(ctx, "product cache read failed", "error", cacheErr)
	} else if ok {
		if jsonErr := json.Unmarshal(cached, &items); jsonErr == nil {
			observability.RecordProductCacheEvent(ctx, "hit")
			if len(items) == 0 {
				return nil, apperr.NotFound("No products found")
			}
			return items, nil
		}
		observability.RecordProductCacheEvent(ctx, "corrupt")
	} else {
		observability.RecordProductCacheEvent(ctx, "miss")
	}

	res, err := s.repo.ListPaged(ctx, req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to fetch products", err)
	}
	if payload, jsonErr := json.Marshal(res.Items); jsonErr == nil {
		if setErr := s.cache.Set(ctx, req.Page, req.PageSize, payload, s.cacheTTL); setErr != nil {
			s.logger.WarnContext(ctx, "product cache write failed", "error", setErr)
		}
	}
	if len(res.Items) == 0 {
		return nil, apperr.NotFound("No products found")
	}
	return res.Items, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uint) (product *domain.Product, err error) {
	start := time.Now()
	defer func() { observability.RecordProductOperation(ctx, "get", operationOutcome(err), time.Since(start)) }()

	product, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, productLookupError(err, "Failed to fetch product")
	}
	return product, nil
}

// Update replaces every field of a product, including its image. The previous
// image object is removed once the row points at the new one.
func (s *ProductService) Update(ctx context.Context, id uint, in ProductInput, image *ImageUpload) (product *domain.Product, err error) {
	start := time.Now()
	defer func() { observability.RecordProductOperation(ctx, "update", operationOutcome(err), time.Since(start)) }()

	in, err = validateProductInput(in, image)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, productLookupError(err, "Failed to update product")
	}
	obj, err := s.upload(ctx, image)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":        in.Name,
		"description": in.Description,
		"price":       in.Price,
		"stock":       in.Stock,
		"image_url":   obj.URL,
		"image_key":   obj.Key,
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		s.discardObject(ctx, obj.Key)
		return nil, productLookupError(err, "Failed to update product")
	}
	s.discardObject(ctx, existing.ImageKey)
	s.invalidate(ctx)

	product, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, productLookupError(err, "Failed to update product")
	}
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, id uint) (err error) {
	start := time.Now()
	defer func() { observability.RecordProductOperation(ctx, "delete", operationOutcome(err), time.Since(start)) }()

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return productLookupError(err, "Failed to delete product")
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return productLookupError(err, "Failed to delete product")
	}
	s.discardObject(ctx, existing.ImageKey)
	s.invalidate(ctx)
	return nil
}

func (s *ProductService) upload(ctx context.Context, image *ImageUpload) (StoredObject, error) {
	obj, err := s.storage.UploadProductImage(ctx, image.File, image.Size)
	switch {
	case err == nil:
		return obj, nil
	case errors.Is(err, ErrImageTooBig):
		return StoredObject{}, apperr.InvalidInput("Image is too large")
	case errors.Is(err, ErrInvalidImageType):
		return StoredObject{}, apperr.InvalidInput("Image must be a JPEG, PNG, GIF or WebP file")
	case errors.Is(err, ErrStorageDisabled):
		return StoredObject{}, apperr.Configuration("Image storage is not configured")
	default:
		return StoredObject{}, apperr.ExternalService("Failed to store product image", err)
	}
}

func (s *ProductService) discardObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.DeleteObject(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "product image cleanup failed", "object_key", key, "error", err)
	}
}

func (s *ProductService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		observability.RecordProductCacheEvent(ctx, "error")
		s.logger.WarnContext(ctx, "product cache invalidation failed", "error", err)
		return
	}
	observability.RecordProductCacheEvent(ctx, "invalidate")
}

func validateProductInput(in ProductInput, image *ImageUpload) (ProductInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Name == "":
		return in, apperr.InvalidInput("Name is required")
	case len(in.Name) > maxProductNameLength:
		return in, apperr.InvalidInput("Name is too long")
	case in.Price < 0:
		return in, apperr.InvalidInput("Price must be positive")
	case in.Stock < 0:
		return in, apperr.InvalidInput("Stock cannot be negative")
	case image == nil || image.File == nil:
		return in, apperr.InvalidInput("Image is required")
	}
	return in, nil
}

func productLookupError(err error, fallback string) error {
	if errors.Is(err, repository.ErrProductNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "Product not found", err)
	}
	return apperr.Wrap(apperr.KindInternal, fallback, err)
}

func operationOutcome(err error) string {
	if err == nil {
		return "success"
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return "bad_request"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindForbidden:
		return "forbidden"
	default:
		return "error"
	}
}
