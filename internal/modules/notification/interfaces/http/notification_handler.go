package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/saransh1220/wardrobe/internal/gateway/middleware"
	"github.com/saransh1220/wardrobe/internal/modules/notification/application"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/realtime"
	"github.com/saransh1220/wardrobe/internal/shared/utils"
)

type StreamConfig struct {
	WriteTimeout time.Duration
	SSERetry     time.Duration
	PongWait     time.Duration
}

type NotificationHandler struct {
	history  *application.HistoryService
	delivery *realtime.Delivery
	stream   StreamConfig
	logger   *slog.Logger
}

func NewNotificationHandler(history *application.HistoryService, delivery *realtime.Delivery, stream StreamConfig, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{history: history, delivery: delivery, stream: stream, logger: logger}
}

// ListNotifications serves GET /notifications?cursor=&idAfter=&limit=
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	q := r.URL.Query()
	page, err := h.history.List(r.Context(), userID, application.HistoryQuery{
		Cursor:  q.Get("cursor"),
		IDAfter: q.Get("idAfter"),
		Limit:   q.Get("limit"),
	})
	if err != nil {
		h.writeServiceError(w, "failed to fetch notifications", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, application.NewHistoryPage(page))
}

// DeleteNotification serves DELETE /notifications/{id}. Deleting twice is
// not an error.
func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	if err := h.history.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeServiceError(w, "failed to delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Subscribe serves the SSE stream. The last seen id comes from the
// Last-Event-ID header an EventSource sends on reconnect, or from the
// lastEventId query parameter on a first connect.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	marker := r.Header.Get("Last-Event-ID")
	if marker == "" {
		marker = r.URL.Query().Get("lastEventId")
	}

	t, err := realtime.NewSSETransport(w, r, h.stream.WriteTimeout, h.stream.SSERetry)
	if err != nil {
		h.logger.Error("sse unavailable", "error", err)
		return
	}
	h.serve(r, userID, marker, t)
}

// SubscribeWS serves the same stream over a WebSocket.
func (h *NotificationHandler) SubscribeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	t, err := realtime.UpgradeWS(w, r, h.stream.WriteTimeout, h.stream.PongWait)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer t.Close()
	h.serve(r, userID, r.URL.Query().Get("lastEventId"), t)
}

func (h *NotificationHandler) serve(r *http.Request, userID uuid.UUID, marker string, t realtime.Transport) {
	start := time.Now()
	err := h.delivery.Serve(r.Context(), userID, marker, t)
	if err != nil && !errors.Is(err, domain.ErrRegistryClosed) {
		h.logger.Warn("notification stream ended with error", "user_id", userID, "error", err)
		return
	}
	h.logger.Debug("notification stream ended", "user_id", userID, "duration", time.Since(start))
}

func (h *NotificationHandler) writeServiceError(w http.ResponseWriter, message string, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		utils.WriteError(w, http.StatusBadRequest, "invalid request", verr)
		return
	}
	h.logger.Error(message, "error", err)
	utils.WriteError(w, http.StatusInternalServerError, message, nil)
}
