package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
)

// SSETransport streams frames as server-sent events. Notification frames
// carry the notification id as the event id so a reconnecting EventSource
// sends it back in Last-Event-ID.
type SSETransport struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	done         <-chan struct{}
	writeTimeout time.Duration
	retry        time.Duration
}

func NewSSETransport(w http.ResponseWriter, r *http.Request, writeTimeout, retry time.Duration) (*SSETransport, error) {
	t := &SSETransport{
		w:            w,
		rc:           http.NewResponseController(w),
		done:         r.Context().Done(),
		writeTimeout: writeTimeout,
		retry:        retry,
	}

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := t.rc.Flush(); err != nil {
		return nil, fmt.Errorf("streaming not supported: %w", err)
	}
	return t, nil
}

func (t *SSETransport) Done() <-chan struct{} { return t.done }

func (t *SSETransport) WriteFrame(f Frame) error {
	if t.writeTimeout > 0 {
		if err := t.rc.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}

	ev := sse.Event{Event: string(f.Kind)}
	switch f.Kind {
	case FrameNotification:
		ev.Id = f.Notification.ID
		ev.Data = *f.Notification
	case FrameConnected:
		ev.Retry = uint(t.retry / time.Millisecond)
		ev.Data = map[string]string{"status": "connected"}
	case FrameHeartbeat:
		ev.Data = map[string]string{"at": time.Now().UTC().Format(time.RFC3339)}
	case FrameClose:
		ev.Data = map[string]string{"reason": string(f.Reason)}
	}

	if err := sse.Encode(t.w, ev); err != nil {
		return err
	}
	return t.rc.Flush()
}
