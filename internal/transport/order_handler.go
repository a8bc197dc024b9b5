package transport

import (
	"net/http"
	"time"

	"shopsy/internal/domain"
	"shopsy/internal/middleware"
	"shopsy/internal/repository"
	"shopsy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceOrderRequest represents the order placement payload
type PlaceOrderRequest struct {
	ProductID  string  `json:"product_id" validate:"required,uuid"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	TotalPrice float64 `json:"total_price" validate:"gte=0"`
}

// UpdateOrderStatusRequest represents a lifecycle transition request
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID         string    `json:"id"`
	BuyerID    string    `json:"buyer_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
	Status     string    `json:"status"`
	EmailSent  bool      `json:"email_sent"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrderViewResponse is an order joined with product and counterparty data
type OrderViewResponse struct {
	OrderResponse
	ProductName      string `json:"product_name"`
	AddedToStock     bool   `json:"added_to_stock"`
	CounterpartyName string `json:"counterparty_name"`
	CounterpartyShop string `json:"counterparty_shop"`
	CounterpartyTel  string `json:"counterparty_tel"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID.String(),
		BuyerID:    o.BuyerID.String(),
		ProductID:  o.ProductID.String(),
		Quantity:   o.Quantity,
		UnitPrice:  o.UnitPrice,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		EmailSent:  o.EmailSent,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toOrderViewResponses(views []*domain.OrderView) []OrderViewResponse {
	out := make([]OrderViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, OrderViewResponse{
			OrderResponse:    toOrderResponse(&v.Order),
			ProductName:      v.ProductName,
			AddedToStock:     v.AddedToStock,
			CounterpartyName: v.CounterpartyName,
			CounterpartyShop: v.CounterpartyShop,
			CounterpartyTel:  v.CounterpartyTel,
		})
	}
	return out
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService     service.OrderService
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, inventoryService service.InventoryService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService:     orderService,
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Place)
		r.Get("/purchases", h.ListPurchases)
		r.Get("/sales", h.ListSales)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/add-to-stock", h.AddToStock)
	})
}

// Place handles order placement
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	order, err := h.orderService.PlaceOrder(r.Context(), userID, productID, req.Quantity, req.TotalPrice)
	if err != nil {
		switch err {
		case service.ErrInvalidQuantity, service.ErrInvalidPrice, service.ErrBelowMinOrder:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case repository.ErrProductNotFound:
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		case repository.ErrInsufficientStock:
			middleware.RespondWithError(w, http.StatusConflict, "insufficient stock")
		default:
			h.logger.Error("Failed to place order", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toOrderResponse(order))
}

// UpdateStatus handles order lifecycle transitions
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Status validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), userID, orderID, domain.OrderStatus(req.Status))
	if err != nil {
		switch err {
		case service.ErrInvalidStatus:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case service.ErrNotAllowed:
			middleware.RespondWithError(w, http.StatusForbidden, err.Error())
		case repository.ErrOrderNotFound:
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		case repository.ErrInvalidTransition:
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Failed to update order status", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update order")
		}
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// AddToStock merges a delivered order into the buyer's own inventory
func (h *OrderHandler) AddToStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	product, err := h.inventoryService.AddToOwnStock(r.Context(), userID, orderID)
	if err != nil {
		switch err {
		case repository.ErrOrderNotFound:
			middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		case repository.ErrStockAlreadyAdded:
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		case repository.ErrOrderNotDelivered:
			middleware.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("Failed to add order to stock", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to add order to stock")
		}
		return
	}

	h.logger.Info("Order added to stock",
		zap.String("order_id", orderID.String()),
		zap.String("product_id", product.ID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, toStockResponse(product))
}

// ListPurchases lists the caller's orders as buyer
func (h *OrderHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	views, err := h.orderService.ListPurchases(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list purchases", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list purchases")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toOrderViewResponses(views))
}

// ListSales lists orders placed against the caller's products
func (h *OrderHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	views, err := h.orderService.ListSales(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list sales", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list sales")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toOrderViewResponses(views))
}
