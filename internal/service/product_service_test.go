package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/repository"
	repogomock "github.com/mahamart/commerce-backend/internal/repository/gomock"
)

func TestProductServiceCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    ProductInput
		image *ImageUpload
		want  string
	}{
		{name: "name", in: ProductInput{Name: "  ", Price: 1}, image: testImage(), want: "Name is required"},
		{name: "price", in: ProductInput{Name: "Tea", Price: -1}, image: testImage(), want: "Price must be positive"},
		{name: "stock", in: ProductInput{Name: "Tea", Price: 1, Stock: -2}, image: testImage(), want: "Stock cannot be negative"},
		{name: "image", in: ProductInput{Name: "Tea", Price: 1}, want: "Image is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newProductServiceFixture(t)
			_, err := fx.svc.Create(context.Background(), tc.in, tc.image)
			assertKind(t, err, apperr.KindInvalidInput, tc.want)
		})
	}
}

func TestProductServiceCreateStoresImageAndInvalidatesCache(t *testing.T) {
	fx := newProductServiceFixture(t)
	ctx := context.Background()
	if err := fx.cache.Set(ctx, 1, 10, []byte(`[]`), time.Minute); err != nil {
		t.Fatal(err)
	}
	fx.storage.EXPECT().UploadProductImage(gomock.Any(), gomock.Any(), int64(4)).
		Return(StoredObject{Key: "products/a.png", URL: "http://cdn/product-images/products/a.png"}, nil)

	p, err := fx.svc.Create(ctx, ProductInput{Name: " Tea ", Description: "green", Price: 2.5, Stock: 3}, testImage())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 || p.Name != "Tea" || p.ImageKey != "products/a.png" || p.ImageURL == nil {
		t.Fatalf("unexpected product %+v", p)
	}
	if _, ok, _ := fx.cache.Get(ctx, 1, 10); ok {
		t.Fatal("expected product list cache to be invalidated")
	}
}

func TestProductServiceCreateDiscardsImageWhenInsertFails(t *testing.T) {
	fx := newProductServiceFixture(t)
	fx.repo.createErr = errors.New("disk full")
	fx.storage.EXPECT().UploadProductImage(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(StoredObject{Key: "products/a.png", URL: "u"}, nil)
	fx.storage.EXPECT().DeleteObject(gomock.Any(), "products/a.png").Return(nil)

	_, err := fx.svc.Create(context.Background(), ProductInput{Name: "Tea", Price: 1}, testImage())
	assertKind(t, err, apperr.KindInternal, "Failed to create product")
}

func TestProductServiceUploadErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{name: "too big", err: ErrImageTooBig, kind: apperr.KindInvalidInput},
		{name: "bad type", err: ErrInvalidImageType, kind: apperr.KindInvalidInput},
		{name: "disabled", err: ErrStorageDisabled, kind: apperr.KindConfiguration},
		{name: "upstream", err: ErrUploadFailed, kind: apperr.KindExternalService},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newProductServiceFixture(t)
			fx.storage.EXPECT().UploadProductImage(gomock.Any(), gomock.Any(), gomock.Any()).Return(StoredObject{}, tc.err)
			_, err := fx.svc.Create(context.Background(), ProductInput{Name: "Tea", Price: 1}, testImage())
			assertKind(t, err, tc.kind, "")
			if fx.repo.count() != 0 {
				t.Fatal("expected no product row after a failed upload")
			}
		})
	}
}

func TestProductServiceListUsesCache(t *testing.T) {
	fx := newProductServiceFixture(t)
	ctx := context.Background()

	_, err := fx.svc.List(ctx, 1, 10)
	assertKind(t, err, apperr.KindNotFound, "No products found")

	fx.repo.seed(domain.Product{Name: "Tea", Price: 1})
	fx.repo.seed(domain.Product{Name: "Coffee", Price: 2})

	// the empty page is still cached
	_, err = fx.svc.List(ctx, 1, 10)
	assertKind(t, err, apperr.KindNotFound, "No products found")

	if err := fx.cache.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	items, err := fx.svc.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Tea" {
		t.Fatalf("unexpected items %+v", items)
	}
	calls := fx.repo.listCalls
	if _, err := fx.svc.List(ctx, 1, 10); err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if fx.repo.listCalls != calls {
		t.Fatal("expected second list to be served from cache")
	}
}

func TestProductServiceListIgnoresCorruptCacheEntry(t *testing.T) {
	fx := newProductServiceFixture(t)
	ctx := context.Background()
	fx.repo.seed(domain.Product{Name: "Tea", Price: 1})
	if err := fx.cache.Set(ctx, 1, 10, []byte(`{not json`), time.Minute); err != nil {
		t.Fatal(err)
	}
	items, err := fx.svc.List(ctx, 1, 10)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected repository fallback, got %+v err=%v", items, err)
	}
}

func TestProductServiceGetByID(t *testing.T) {
	fx := newProductServiceFixture(t)
	id := fx.repo.seed(domain.Product{Name: "Tea", Price: 1})

	p, err := fx.svc.GetByID(context.Background(), id)
	if err != nil || p.Name != "Tea" {
		t.Fatalf("expected Tea, got %+v err=%v", p, err)
	}
	_, err = fx.svc.GetByID(context.Background(), id+1)
	assertKind(t, err, apperr.KindNotFound, "Product not found")
}

func TestProductServiceUpdateReplacesImage(t *testing.T) {
	fx := newProductServiceFixture(t)
	id := fx.repo.seed(domain.Product{Name: "Tea", Price: 1, ImageKey: "products/old.png"})
	fx.storage.EXPECT().UploadProductImage(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(StoredObject{Key: "products/new.png", URL: "http://cdn/new.png"}, nil)
	fx.storage.EXPECT().DeleteObject(gomock.Any(), "products/old.png").Return(nil)

	p, err := fx.svc.Update(context.Background(), id, ProductInput{Name: "Green Tea", Price: 3, Stock: 7}, testImage())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Name != "Green Tea" || p.Price != 3 || p.Stock != 7 || p.ImageKey != "products/new.png" {
		t.Fatalf("unexpected product %+v", p)
	}
	if p.ImageURL == nil || *p.ImageURL != "http://cdn/new.png" {
		t.Fatalf("unexpected image url %v", p.ImageURL)
	}
}

func TestProductServiceUpdateMissingProductSkipsUpload(t *testing.T) {
	fx := newProductServiceFixture(t)
	_, err := fx.svc.Update(context.Background(), 42, ProductInput{Name: "Tea", Price: 1}, testImage())
	assertKind(t, err, apperr.KindNotFound, "Product not found")
}

func TestProductServiceDelete(t *testing.T) {
	fx := newProductServiceFixture(t)
	id := fx.repo.seed(domain.Product{Name: "Tea", Price: 1, ImageKey: "products/a.png"})
	fx.storage.EXPECT().DeleteObject(gomock.Any(), "products/a.png").Return(errors.New("minio down"))

	if err := fx.svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete should succeed even if image cleanup fails: %v", err)
	}
	err := fx.svc.Delete(context.Background(), id)
	assertKind(t, err, apperr.KindNotFound, "Product not found")
}

type productServiceFixture struct {
	svc     *ProductService
	repo    *productRepoState
	storage *MockImageStorage
	cache   *InMemoryProductListCache
}

func newProductServiceFixture(t *testing.T) *productServiceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := newProductRepoState()
	repoMock := repogomock.NewMockProductRepository(ctrl)
	repoMock.EXPECT().Create(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(repo.Create)
	repoMock.EXPECT().FindByID(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(repo.FindByID)
	repoMock.EXPECT().ListPaged(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(repo.ListPaged)
	repoMock.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(repo.Update)
	repoMock.EXPECT().DeleteByID(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(repo.DeleteByID)

	storage := NewMockImageStorage(ctrl)
	cache := NewInMemoryProductListCache()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &productServiceFixture{
		svc:     NewProductService(repoMock, storage, cache, time.Minute, logger),
		repo:    repo,
		storage: storage,
		cache:   cache,
	}
}

func testImage() *ImageUpload {
	return &ImageUpload{File: bytes.NewReader([]byte("\x89PNG")), Size: 4}
}

type productRepoState struct {
	mu        sync.Mutex
	nextID    uint
	items     map[uint]domain.Product
	createErr error
	listCalls int
}

func newProductRepoState() *productRepoState {
	return &productRepoState{nextID: 1, items: map[uint]domain.Product{}}
}

func (r *productRepoState) seed(p domain.Product) uint {
	if err := r.Create(context.Background(), &p); err != nil {
		panic(err)
	}
	return p.ID
}

func (r *productRepoState) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	p.ID = r.nextID
	r.nextID++
	r.items[p.ID] = *p
	return nil
}

func (r *productRepoState) FindByID(_ context.Context, id uint) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r *productRepoState) ListPaged(_ context.Context, req repository.PageRequest) (repository.PageResult[domain.Product], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	req = req.Normalize()
	ids := make([]uint, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := repository.PageResult[domain.Product]{Items: []domain.Product{}, Page: req.Page, PageSize: req.PageSize, Total: int64(len(ids))}
	for i := req.Offset(); i < len(ids) && len(out.Items) < req.PageSize; i++ {
		out.Items = append(out.Items, r.items[ids[i]])
	}
	return out, nil
}

func (r *productRepoState) Update(_ context.Context, id uint, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			p.Name = v.(string)
		case "description":
			p.Description = v.(string)
		case "price":
			p.Price = v.(float64)
		case "stock":
			p.Stock = v.(int)
		case "image_url":
			u := v.(string)
			p.ImageURL = &u
		case "image_key":
			p.ImageKey = v.(string)
		}
	}
	r.items[id] = p
	return nil
}

func (r *productRepoState) DeleteByID(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *productRepoState) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
