package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/http/response"
	"github.com/mahamart/commerce-backend/internal/service"
)

const (
	multipartMemory     = 8 << 20
	defaultProductPage  = 1
	defaultProductLimit = 10
)

type ProductHandler struct {
	svc service.ProductServiceInterface
}

func NewProductHandler(svc service.ProductServiceInterface) *ProductHandler {
	return &ProductHandler{svc: svc}
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, image, cleanup, err := parseProductForm(r)
	defer cleanup()
	if err != nil {
		response.FromError(w, r, "product.create", err)
		return
	}
	created, err := h.svc.Create(r.Context(), in, image)
	if err != nil {
		response.FromError(w, r, "product.create", err)
		return
	}
	response.JSON(w, r, http.StatusCreated, created)
}

// List writes a bare array of products for the requested page.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), queryInt(r, "page", defaultProductPage), queryInt(r, "limit", defaultProductLimit))
	if err != nil {
		response.FromError(w, r, "product.list", err)
		return
	}
	response.JSON(w, r, http.StatusOK, items)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, "product.get", apperr.NotFound("Product not found"))
		return
	}
	product, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, r, "product.get", err)
		return
	}
	response.JSON(w, r, http.StatusOK, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, "product.update", apperr.NotFound("Product not found"))
		return
	}
	in, image, cleanup, err := parseProductForm(r)
	defer cleanup()
	if err != nil {
		response.FromError(w, r, "product.update", err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, in, image)
	if err != nil {
		response.FromError(w, r, "product.update", err)
		return
	}
	response.JSON(w, r, http.StatusOK, updated)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, "product.delete", apperr.NotFound("Product not found"))
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.FromError(w, r, "product.delete", err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Message{Message: "Product deleted successfully"})
}

// parseProductForm reads the multipart product fields. A missing image is not
// an error here; the service decides whether one is required. cleanup is
// always safe to call.
func parseProductForm(r *http.Request) (service.ProductInput, *service.ImageUpload, func(), error) {
	cleanup := func() {}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return service.ProductInput{}, nil, cleanup, apperr.InvalidInput("Request body too large")
		}
		return service.ProductInput{}, nil, cleanup, apperr.Wrap(apperr.KindInvalidInput, "Missing required fields", err)
	}
	cleanup = func() { _ = r.MultipartForm.RemoveAll() }

	name := strings.TrimSpace(r.FormValue("name"))
	rawPrice := strings.TrimSpace(r.FormValue("price"))
	rawStock := strings.TrimSpace(r.FormValue("stock"))
	if name == "" || rawPrice == "" || rawStock == "" {
		return service.ProductInput{}, nil, cleanup, apperr.InvalidInput("Missing required fields")
	}
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil {
		return service.ProductInput{}, nil, cleanup, apperr.InvalidInput("Price must be a number")
	}
	stock, err := strconv.Atoi(rawStock)
	if err != nil {
		return service.ProductInput{}, nil, cleanup, apperr.InvalidInput("Stock must be an integer")
	}
	in := service.ProductInput{
		Name:        name,
		Description: r.FormValue("description"),
		Price:       price,
		Stock:       stock,
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, cleanup, nil
	case err != nil:
		return in, nil, cleanup, apperr.Wrap(apperr.KindInvalidInput, "Invalid image upload", err)
	}
	removeAll := cleanup
	cleanup = func() {
		_ = file.Close()
		removeAll()
	}
	return in, &service.ImageUpload{File: file, Size: fileSize(header)}, cleanup, nil
}

func fileSize(h *multipart.FileHeader) int64 {
	if h == nil {
		return -1
	}
	return h.Size
}
