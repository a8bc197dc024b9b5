package transport

import (
	"net/http"

	"shopsy/internal/domain"
	"shopsy/internal/middleware"
	"shopsy/internal/repository"
	"shopsy/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockRequest represents the create/update payload for a product
type StockRequest struct {
	Name         string  `json:"name" validate:"required"`
	Category     string  `json:"category"`
	Price        float64 `json:"price" validate:"gte=0"`
	Quantity     int     `json:"quantity" validate:"gte=0"`
	MinOrder     int     `json:"min_order" validate:"gte=0"`
	MinThreshold int     `json:"min_threshold" validate:"gte=0"`
	Supplier     string  `json:"supplier"`
	Location     string  `json:"location"`
}

// StockResponse represents a product in API responses
type StockResponse struct {
	ID           string  `json:"id"`
	OwnerID      string  `json:"owner_id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
	MinOrder     int     `json:"min_order"`
	MinThreshold int     `json:"min_threshold"`
	Supplier     string  `json:"supplier"`
	Location     string  `json:"location"`
	LowStock     bool    `json:"low_stock"`
}

func toStockResponse(p *domain.Product) StockResponse {
	return StockResponse{
		ID:           p.ID.String(),
		OwnerID:      p.OwnerID.String(),
		Name:         p.Name,
		Category:     p.Category,
		Price:        p.Price,
		Quantity:     p.Quantity,
		MinOrder:     p.MinOrder,
		MinThreshold: p.MinThreshold,
		Supplier:     p.Supplier,
		Location:     p.Location,
		LowStock:     p.LowStock(),
	}
}

func toStockResponses(products []*domain.Product) []StockResponse {
	out := make([]StockResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toStockResponse(p))
	}
	return out
}

// StockHandler handles HTTP requests for inventory operations
type StockHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(inventoryService service.InventoryService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers all stock routes
func (h *StockHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/stocks", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListOwn)
		r.Post("/", h.Create)
		r.Get("/public", h.ListPublic)
		r.Get("/stats", h.Stats)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *StockHandler) decodeInput(w http.ResponseWriter, r *http.Request) (service.StockInput, bool) {
	var req StockRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Stock validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return service.StockInput{}, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return service.StockInput{}, false
	}

	return service.StockInput{
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		Quantity:     req.Quantity,
		MinOrder:     req.MinOrder,
		MinThreshold: req.MinThreshold,
		Supplier:     req.Supplier,
		Location:     req.Location,
	}, true
}

// Create handles listing a new product
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	product, err := h.inventoryService.CreateStock(r.Context(), userID, in)
	if err != nil {
		if err == service.ErrInvalidStockInput {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to create stock", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create stock")
		return
	}

	h.logger.Info("Stock created",
		zap.String("product_id", product.ID.String()),
		zap.String("owner_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toStockResponse(product))
}

// Update handles rewriting a product the caller owns
func (h *StockHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	product, err := h.inventoryService.UpdateStock(r.Context(), userID, productID, in)
	if err != nil {
		switch err {
		case service.ErrInvalidStockInput:
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		case repository.ErrProductNotFound:
			middleware.RespondWithError(w, http.StatusNotFound, "stock not found")
		default:
			h.logger.Error("Failed to update stock", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update stock")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toStockResponse(product))
}

// Delete handles removing a product the caller owns
func (h *StockHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.inventoryService.DeleteStock(r.Context(), userID, productID); err != nil {
		if err == repository.ErrProductNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "stock not found")
			return
		}
		h.logger.Error("Failed to delete stock", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to delete stock")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "stock deleted"})
}

// ListOwn handles listing the caller's own products
func (h *StockHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	products, err := h.inventoryService.ListStocks(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list stocks", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list stocks")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toStockResponses(products))
}

// ListPublic handles the discover view of every listed product
func (h *StockHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventoryService.ListPublicStocks(r.Context())
	if err != nil {
		h.logger.Error("Failed to list public stocks", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list stocks")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toStockResponses(products))
}

// Stats handles the caller's inventory summary
func (h *StockHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.inventoryService.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to compute stock stats", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}
