package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin is enforced by the CORS middleware and the auth token
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type FrameKind `json:"type"`
	ID   string    `json:"id,omitempty"`
	Data any       `json:"data,omitempty"`
}

// WSTransport streams frames as JSON messages over a WebSocket. Heartbeats
// are ping control frames; a client that stops answering with pongs is
// treated as gone once pongWait elapses.
type WSTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

// UpgradeWS switches the request to the WebSocket protocol. On failure the
// upgrader has already replied with an HTTP error.
func UpgradeWS(w http.ResponseWriter, r *http.Request, writeTimeout, pongWait time.Duration) (*WSTransport, error) {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pongWait <= 0 {
		pongWait = time.Minute
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	t := &WSTransport{
		conn:         conn,
		writeTimeout: writeTimeout,
		pongWait:     pongWait,
		done:         make(chan struct{}),
	}
	go t.readPump()
	return t, nil
}

// readPump discards client messages; it exists to process control frames
// and to notice when the client goes away.
func (t *WSTransport) readPump() {
	defer t.markDone()

	t.conn.SetReadLimit(maxMessageSize)
	_ = t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(t.pongWait))
	})
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (t *WSTransport) markDone() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *WSTransport) Done() <-chan struct{} { return t.done }

func (t *WSTransport) WriteFrame(f Frame) error {
	deadline := time.Now().Add(t.writeTimeout)
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	switch f.Kind {
	case FrameHeartbeat:
		return t.conn.WriteControl(websocket.PingMessage, nil, deadline)
	case FrameNotification:
		return t.conn.WriteJSON(wsMessage{Type: f.Kind, ID: f.Notification.ID, Data: f.Notification})
	case FrameClose:
		if err := t.conn.WriteJSON(wsMessage{Type: f.Kind, Data: map[string]string{"reason": string(f.Reason)}}); err != nil {
			return err
		}
		return t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, string(f.Reason)), deadline)
	default:
		return t.conn.WriteJSON(wsMessage{Type: f.Kind})
	}
}

func (t *WSTransport) Close() error {
	return t.conn.Close()
}
