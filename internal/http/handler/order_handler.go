package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mahamart/commerce-backend/internal/apperr"
	"github.com/mahamart/commerce-backend/internal/http/middleware"
	"github.com/mahamart/commerce-backend/internal/http/response"
	"github.com/mahamart/commerce-backend/internal/service"
)

type createOrderRequest struct {
	UserID    uint `json:"id_user"`
	ProductID uint `json:"id_product" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required"`
}

func (createOrderRequest) requiredMessage() string { return "id_product and quantity are required" }

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (updateOrderStatusRequest) requiredMessage() string { return "id and status are required" }

type OrderHandler struct {
	svc service.OrderServiceInterface
}

func NewOrderHandler(svc service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := callerID(r)
	if !ok {
		response.FromError(w, r, "order.create", apperr.Forbidden("Forbidden: Invalid token"))
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "order.create", err)
		return
	}
	order, err := h.svc.Create(r.Context(), callerID, service.CreateOrderInput{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		response.FromError(w, r, "order.create", err)
		return
	}
	response.JSON(w, r, http.StatusCreated, order)
}

// List returns every order, or only one user's when ?user_id= is set.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var userID *uint
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			response.FromError(w, r, "order.list", apperr.InvalidInput("user_id must be a positive integer"))
			return
		}
		v := uint(id)
		userID = &v
	}
	orders, err := h.svc.List(r.Context(), userID)
	if err != nil {
		response.FromError(w, r, "order.list", err)
		return
	}
	response.JSON(w, r, http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, "order.update_status", apperr.InvalidInput("id and status are required"))
		return
	}
	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.FromError(w, r, "order.update_status", err)
		return
	}
	order, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		response.FromError(w, r, "order.update_status", err)
		return
	}
	response.JSON(w, r, http.StatusOK, order)
}

func callerID(r *http.Request) (uint, bool) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		return 0, false
	}
	id, err := service.ParseSubject(subject)
	if err != nil {
		return 0, false
	}
	return id, true
}
