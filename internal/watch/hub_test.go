package watch

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
	"github.com/conduit-lang/apiextractor/internal/errors"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) BuildEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event BuildEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	first := dial(t, hub)
	second := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.NotifyBuilding([]string{"/src/rules.xml"})
	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, EventBuilding, event.Type)
		assert.Equal(t, []string{"/src/rules.xml"}, event.Files)
		assert.NotZero(t, event.Timestamp)
	}

	hub.NotifyBuilt("run-1", 42*time.Millisecond, 10, 3)
	event := readEvent(t, first)
	assert.Equal(t, EventBuilt, event.Type)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, float64(42), event.Duration)
	assert.Equal(t, 10, event.Classes)
	assert.Equal(t, 3, event.Rejections)
}

func TestHub_NotifyFailed(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.NotifyFailed(fmt.Errorf("load: %w", errors.NewMalformedRuleset("rules.xml", fmt.Errorf("unexpected EOF"))))
	event := readEvent(t, conn)
	assert.Equal(t, EventFailed, event.Type)
	require.NotNil(t, event.Error)
	assert.Equal(t, string(errors.ErrMalformedRuleset), event.Error.Code)
	assert.Equal(t, "rules.xml", event.Error.File)
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	hub.Close()
	// Publishing after Close must not block.
	hub.NotifyBuilding(nil)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestNewErrorInfo(t *testing.T) {
	assert.Nil(t, NewErrorInfo(nil))

	plain := NewErrorInfo(fmt.Errorf("boom"))
	assert.Equal(t, &ErrorInfo{Message: "boom"}, plain)

	diag := errors.NewTypeNotFound(codemodel.SourceLocation{File: "widget.h", Line: 12}, "Gadget")
	info := NewErrorInfo(diag)
	assert.Equal(t, string(diag.Code), info.Code)
	assert.Equal(t, diag.Message, info.Message)
	assert.Equal(t, "widget.h", info.File)
	assert.Equal(t, 12, info.Line)
}

func TestLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:7070", true},
		{"https://127.0.0.1", true},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/events", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, localOrigin(r), tt.origin)
	}
}
