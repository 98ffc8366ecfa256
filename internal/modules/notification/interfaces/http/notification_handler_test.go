package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/saransh1220/wardrobe/internal/gateway/middleware"
	"github.com/saransh1220/wardrobe/internal/modules/notification/application"
	"github.com/saransh1220/wardrobe/internal/modules/notification/domain"
	"github.com/saransh1220/wardrobe/internal/modules/notification/infrastructure/realtime"
	notificationhttp "github.com/saransh1220/wardrobe/internal/modules/notification/interfaces/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationRepoStub struct {
	findPageFn  func(context.Context, domain.PageRequest) ([]domain.Notification, error)
	listAfterFn func(context.Context, uuid.UUID, domain.Cursor, int) ([]domain.Notification, error)
	deleteFn    func(context.Context, string, uuid.UUID) error
	countFn     func(context.Context, uuid.UUID) (int, error)
}

func (s notificationRepoStub) Create(context.Context, *domain.Notification) error { return nil }
func (s notificationRepoStub) Delete(ctx context.Context, id string, receiverID uuid.UUID) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id, receiverID)
}
func (s notificationRepoStub) FindPage(ctx context.Context, req domain.PageRequest) ([]domain.Notification, error) {
	if s.findPageFn == nil {
		return nil, nil
	}
	return s.findPageFn(ctx, req)
}
func (s notificationRepoStub) ListAfter(ctx context.Context, receiverID uuid.UUID, after domain.Cursor, limit int) ([]domain.Notification, error) {
	if s.listAfterFn == nil {
		return nil, nil
	}
	return s.listAfterFn(ctx, receiverID, after, limit)
}
func (s notificationRepoStub) Count(ctx context.Context, receiverID uuid.UUID) (int, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx, receiverID)
}
func (s notificationRepoStub) PurgeOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func authedRequest(method, path string, userID uuid.UUID) *stdhttp.Request {
	req := httptest.NewRequest(method, path, nil)
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserId, userID)
	return req.WithContext(ctx)
}

func withUser(userID uuid.UUID, next stdhttp.HandlerFunc) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		ctx := context.WithValue(r.Context(), middleware.ContextKeyUserId, userID)
		next(w, r.WithContext(ctx))
	})
}

func newHandler(repo notificationRepoStub) (*notificationhttp.NotificationHandler, *realtime.Registry) {
	reg := realtime.NewRegistry(4, nil)
	history := application.NewHistoryService(repo, application.HistoryConfig{DefaultLimit: 20, MaxLimit: 50})
	delivery := realtime.NewDelivery(reg, repo, realtime.Config{HeartbeatInterval: time.Hour}, nil)
	stream := notificationhttp.StreamConfig{WriteTimeout: time.Second, SSERetry: 3 * time.Second, PongWait: time.Minute}
	return notificationhttp.NewNotificationHandler(history, delivery, stream, nil), reg
}

func TestNotificationHandler_RequiresUser(t *testing.T) {
	h, _ := newHandler(notificationRepoStub{})
	handlers := map[string]stdhttp.HandlerFunc{
		"list":      h.ListNotifications,
		"delete":    h.DeleteNotification,
		"subscribe": h.Subscribe,
		"ws":        h.SubscribeWS,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, httptest.NewRequest(stdhttp.MethodGet, "/notifications", nil))
			assert.Equal(t, stdhttp.StatusUnauthorized, w.Code)
		})
	}
}

func TestNotificationHandler_ListNotifications(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []domain.Notification{
		{ID: "01JN0000000000000000000003", ReceiverID: userID, Title: "New like", Body: "c", Level: domain.LevelInfo, CreatedAt: at.Add(2 * time.Second)},
		{ID: "01JN0000000000000000000002", ReceiverID: userID, Title: "New like", Body: "b", Level: domain.LevelInfo, CreatedAt: at.Add(time.Second)},
		{ID: "01JN0000000000000000000001", ReceiverID: userID, Title: "New like", Body: "a", Level: domain.LevelInfo, CreatedAt: at},
	}
	h, _ := newHandler(notificationRepoStub{
		findPageFn: func(_ context.Context, req domain.PageRequest) ([]domain.Notification, error) {
			assert.Equal(t, userID, req.ReceiverID)
			assert.Equal(t, 2, req.Limit)
			assert.Nil(t, req.Cursor)
			return rows, nil
		},
		countFn: func(context.Context, uuid.UUID) (int, error) { return 3, nil },
	})

	w := httptest.NewRecorder()
	h.ListNotifications(w, authedRequest(stdhttp.MethodGet, "/notifications?limit=2", userID))
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Data []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"data"`
		NextCursor    *string `json:"nextCursor"`
		NextIDAfter   *string `json:"nextIdAfter"`
		HasNext       bool    `json:"hasNext"`
		TotalCount    int     `json:"totalCount"`
		SortBy        string  `json:"sortBy"`
		SortDirection string  `json:"sortDirection"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "c", body.Data[0].Content)
	assert.True(t, body.HasNext)
	assert.Equal(t, 3, body.TotalCount)
	require.NotNil(t, body.NextCursor)
	assert.Equal(t, "2026-03-01T12:00:01Z", *body.NextCursor)
	require.NotNil(t, body.NextIDAfter)
	assert.Equal(t, rows[1].ID, *body.NextIDAfter)
	assert.Equal(t, "createdAt", body.SortBy)
	assert.Equal(t, "DESCENDING", body.SortDirection)
}

func TestNotificationHandler_ListNotificationsErrors(t *testing.T) {
	userID := uuid.New()

	t.Run("bad limit", func(t *testing.T) {
		h, _ := newHandler(notificationRepoStub{})
		w := httptest.NewRecorder()
		h.ListNotifications(w, authedRequest(stdhttp.MethodGet, "/notifications?limit=500", userID))
		assert.Equal(t, stdhttp.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "limit")
	})

	t.Run("half a cursor", func(t *testing.T) {
		h, _ := newHandler(notificationRepoStub{})
		w := httptest.NewRecorder()
		h.ListNotifications(w, authedRequest(stdhttp.MethodGet, "/notifications?cursor=2026-03-01T12:00:00Z", userID))
		assert.Equal(t, stdhttp.StatusBadRequest, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		h, _ := newHandler(notificationRepoStub{
			findPageFn: func(context.Context, domain.PageRequest) ([]domain.Notification, error) {
				return nil, errors.Join(domain.ErrStorage, errors.New("db down"))
			},
		})
		w := httptest.NewRecorder()
		h.ListNotifications(w, authedRequest(stdhttp.MethodGet, "/notifications", userID))
		assert.Equal(t, stdhttp.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}

func TestNotificationHandler_DeleteNotification(t *testing.T) {
	userID := uuid.New()
	id := ulid.Make().String()
	var deleted []string
	h, _ := newHandler(notificationRepoStub{
		deleteFn: func(_ context.Context, gotID string, receiver uuid.UUID) error {
			assert.Equal(t, userID, receiver)
			deleted = append(deleted, gotID)
			return nil
		},
	})

	mux := stdhttp.NewServeMux()
	mux.Handle("DELETE /notifications/{id}", withUser(userID, h.DeleteNotification))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodDelete, "/notifications/"+id, nil))
		assert.Equal(t, stdhttp.StatusNoContent, w.Code)
	}
	assert.Equal(t, []string{id, id}, deleted)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(stdhttp.MethodDelete, "/notifications/not-an-id", nil))
	assert.Equal(t, stdhttp.StatusBadRequest, w.Code)
	assert.Len(t, deleted, 2)
}

func readSSE(t *testing.T, r *bufio.Reader) (event, id, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if event != "" {
				return
			}
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		switch field {
		case "event":
			event = value
		case "id":
			id = value
		case "data":
			data = value
		}
	}
}

func TestNotificationHandler_SubscribeReplaysFromLastEventID(t *testing.T) {
	userID := uuid.New()
	marker := "01JN0000000000000000000001"
	missed := domain.Notification{ID: "01JN0000000000000000000002", ReceiverID: userID, Title: "New comment", Body: "nice fit", Level: domain.LevelInfo, CreatedAt: time.Now().UTC()}

	h, reg := newHandler(notificationRepoStub{
		listAfterFn: func(_ context.Context, receiver uuid.UUID, after domain.Cursor, _ int) ([]domain.Notification, error) {
			assert.Equal(t, userID, receiver)
			if after.ID == marker {
				return []domain.Notification{missed}, nil
			}
			return nil, nil
		},
	})
	srv := httptest.NewServer(withUser(userID, h.Subscribe))
	defer srv.Close()

	req, err := stdhttp.NewRequest(stdhttp.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", marker)
	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := bufio.NewReader(resp.Body)

	event, id, data := readSSE(t, body)
	assert.Equal(t, "notification", event)
	assert.Equal(t, missed.ID, id)
	assert.Contains(t, data, `"content":"nice fit"`)

	event, _, _ = readSSE(t, body)
	assert.Equal(t, "connected", event)

	require.Eventually(t, func() bool { return reg.CountFor(userID) == 1 }, 2*time.Second, 10*time.Millisecond)
	reg.CloseAll(realtime.ReasonShutdown)
	event, _, data = readSSE(t, body)
	assert.Equal(t, "close", event)
	assert.Contains(t, data, "shutdown")
}

func TestNotificationHandler_SubscribeWS(t *testing.T) {
	userID := uuid.New()
	h, reg := newHandler(notificationRepoStub{})
	srv := httptest.NewServer(withUser(userID, h.SubscribeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type string          `json:"type"`
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "connected", msg.Type)

	require.Eventually(t, func() bool { return reg.CountFor(userID) == 1 }, 2*time.Second, 10*time.Millisecond)
	live := domain.Notification{ID: ulid.Make().String(), ReceiverID: userID, Title: "New follower", Body: "mia followed you", Level: domain.LevelInfo, CreatedAt: time.Now().UTC()}
	require.NoError(t, reg.PushToUser(context.Background(), userID, live))

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, live.ID, msg.ID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return reg.CountFor(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
