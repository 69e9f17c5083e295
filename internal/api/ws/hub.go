package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// EventReadyToPop tells subscribers a session has data or has ended.
	EventReadyToPop = "ready-to-pop"

	sendBuffer = 64
	writeWait  = 5 * time.Second
)

// Event is the message pushed to subscribers.
type Event struct {
	Event string `json:"event"`
	ID    int    `json:"id"`
}

// Recorder receives connection and message counts.
type Recorder interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(msgType string)
}

type subscriber struct {
	id   uuid.UUID
	send chan []byte
}

// Hub fans session events out to every connected WebSocket.
type Hub struct {
	logger   *zap.Logger
	recorder Recorder
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	subs   map[uuid.UUID]*subscriber
	closed bool
}

// NewHub creates an empty hub. recorder may be nil.
func NewHub(logger *zap.Logger, recorder Recorder) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		recorder: recorder,
		upgrader: websocket.Upgrader{
			// The sandbox origin is not known in advance.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[uuid.UUID]*subscriber),
	}
}

// ReadyToPop implements fetch.Notifier. Subscribers that fall behind by
// more than sendBuffer events miss events rather than stall the stream.
func (h *Hub) ReadyToPop(id int) {
	msg, err := sonic.Marshal(Event{Event: EventReadyToPop, ID: id})
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.send <- msg:
			if h.recorder != nil {
				h.recorder.RecordWSMessage(EventReadyToPop)
			}
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				zap.String("subscriber", sub.id.String()),
				zap.Int("session", id))
		}
	}
}

// HandleConnection upgrades the request and streams events until the peer
// goes away.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{id: uuid.New(), send: make(chan []byte, sendBuffer)}
	if !h.register(sub) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Debug("subscriber connected", zap.String("subscriber", sub.id.String()))

	go h.writeLoop(conn, sub)

	// Reading drives ping/pong/close handling; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(sub)
	h.logger.Debug("subscriber disconnected", zap.String("subscriber", sub.id.String()))
}

func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber) {
	defer conn.Close()
	for msg := range sub.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed",
				zap.String("subscriber", sub.id.String()),
				zap.Error(err))
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *Hub) register(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[sub.id] = sub
	if h.recorder != nil {
		h.recorder.IncWSConnections()
	}
	return true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.send)
	if h.recorder != nil {
		h.recorder.DecWSConnections()
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.send)
		if h.recorder != nil {
			h.recorder.DecWSConnections()
		}
	}
}
