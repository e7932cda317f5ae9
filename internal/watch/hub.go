package watch

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/errors"
)

// EventType identifies a build event.
type EventType string

const (
	EventBuilding EventType = "building"
	EventBuilt    EventType = "built"
	EventFailed   EventType = "failed"
)

// BuildEvent is sent to every connected client as JSON.
type BuildEvent struct {
	Type       EventType  `json:"type"`
	Timestamp  int64      `json:"timestamp"`
	RunID      string     `json:"run_id,omitempty"`
	Files      []string   `json:"files,omitempty"`
	Duration   float64    `json:"duration_ms,omitempty"`
	Classes    int        `json:"classes,omitempty"`
	Rejections int        `json:"rejections,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed build.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Hub fans build events out to websocket clients.
type Hub struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *BuildEvent
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewHub creates a hub and starts its event loop.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *BuildEvent, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     localOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go h.run()

	return h
}

// localOrigin accepts same-origin requests and pages served from this host.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.mutex.Lock()
			h.connections[conn] = true
			count := len(h.connections)
			h.mutex.Unlock()
			h.logger.Debug("client connected", zap.Int("clients", count))

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				_ = conn.Close()
			}
			count := len(h.connections)
			h.mutex.Unlock()
			h.logger.Debug("client disconnected", zap.Int("clients", count))

		case event := <-h.broadcast:
			h.sendToAll(event)
		}
	}
}

func (h *Hub) sendToAll(event *BuildEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal build event", zap.Error(err))
		return
	}

	h.mutex.RLock()
	var failed []*websocket.Conn
	for conn := range h.connections {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("failed to send build event", zap.Error(err))
			failed = append(failed, conn)
		}
	}
	h.mutex.RUnlock()

	if len(failed) > 0 {
		h.mutex.Lock()
		for _, conn := range failed {
			if _, ok := h.connections[conn]; ok {
				_ = conn.Close()
				delete(h.connections, conn)
			}
		}
		h.mutex.Unlock()
	}
}

// HandleWebSocket upgrades the request and subscribes the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("failed to upgrade connection", zap.Error(err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.readMessages(conn)
}

// readMessages drains the client so pings and close frames are handled.
func (h *Hub) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case h.unregister <- conn:
		case <-h.done:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket error", zap.Error(err))
			}
			return
		}
	}
}

// Publish queues an event for every client. Events published after Close
// are dropped.
func (h *Hub) Publish(event *BuildEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

// NotifyBuilding announces a rebuild triggered by files.
func (h *Hub) NotifyBuilding(files []string) {
	h.Publish(&BuildEvent{Type: EventBuilding, Files: files})
}

// NotifyBuilt announces a finished build.
func (h *Hub) NotifyBuilt(runID string, duration time.Duration, classes, rejections int) {
	h.Publish(&BuildEvent{
		Type:       EventBuilt,
		RunID:      runID,
		Duration:   float64(duration.Milliseconds()),
		Classes:    classes,
		Rejections: rejections,
	})
}

// NotifyFailed announces a build that stopped with err.
func (h *Hub) NotifyFailed(err error) {
	h.Publish(&BuildEvent{Type: EventFailed, Error: NewErrorInfo(err)})
}

// NewErrorInfo extracts the diagnostic details of err when it carries one.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	info := &ErrorInfo{Message: err.Error()}
	var diag *errors.Diagnostic
	if stderrors.As(err, &diag) {
		info.Message = diag.Message
		info.Code = string(diag.Code)
		info.File = diag.Location.File
		info.Line = diag.Location.Line
	}
	return info
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections)
}

// Close disconnects every client and stops the event loop.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mutex.Lock()
		defer h.mutex.Unlock()
		for conn := range h.connections {
			_ = conn.Close()
		}
		h.connections = make(map[*websocket.Conn]bool)
	})
}
