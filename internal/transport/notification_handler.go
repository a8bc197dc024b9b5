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

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	RefID     string    `json:"ref_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponses(notifications []*domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, NotificationResponse{
			ID:        n.ID.String(),
			Kind:      string(n.Kind),
			RefID:     n.RefID.String(),
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// NotificationHandler handles HTTP requests for the notification feed
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// RegisterRoutes registers all notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/notifications", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.Feed)
		r.Patch("/{id}/read", h.MarkRead)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/unread-all", h.MarkAllUnread)
	})
}

// Feed returns the caller's reconciled notification feed, newest first
func (h *NotificationHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notifications, err := h.notificationService.Feed(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to build notification feed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toNotificationResponses(notifications))
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid notification ID")
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), userID, notificationID); err != nil {
		if err == repository.ErrNotificationNotFound {
			middleware.RespondWithError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("Failed to mark notification read", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "notification marked read"})
}

// MarkAllRead marks the caller's whole feed as read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notificationService.MarkAllRead(r.Context(), userID); err != nil {
		h.logger.Error("Failed to mark all notifications read", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "all notifications marked read"})
}

// MarkAllUnread marks the caller's whole feed as unread
func (h *NotificationHandler) MarkAllUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.notificationService.MarkAllUnread(r.Context(), userID); err != nil {
		h.logger.Error("Failed to mark all notifications unread", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "all notifications marked unread"})
}
