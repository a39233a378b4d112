package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ShopNotifier/internal/deadletter"
)

// NotificationHandler handles HTTP read requests over the notification and
// dead-letter stores.
type NotificationHandler struct {
	repo        *NotificationRepository
	deadLetters *deadletter.Recorder
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(repo *NotificationRepository, deadLetters *deadletter.Recorder) *NotificationHandler {
	return &NotificationHandler{repo: repo, deadLetters: deadLetters}
}

// ListNotifications returns a user's notifications, newest first.
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing user id"})
	}

	notifications, err := h.repo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch notifications"})
	}
	return c.JSON(http.StatusOK, map[string]any{"result": notifications})
}

// MarkRead flags a single notification as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	if err := h.repo.MarkRead(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

// ListDeadLetters returns the most recent dead-letter records for offline
// inspection.
func (h *NotificationHandler) ListDeadLetters(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
		limit = parsed
	}

	records, err := h.deadLetters.List(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch dead letters"})
	}
	return c.JSON(http.StatusOK, map[string]any{"result": records})
}
