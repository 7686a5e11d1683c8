package web

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ChlorophyllA/skin2/pkg/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, h *harness, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(url, header)
}

func sessionHeader(t *testing.T, h *harness) http.Header {
	t.Helper()
	h.get(t, "/diagnose")
	header := http.Header{}
	header.Set("Cookie", h.server.options.CookieName+"="+h.sessionID(t))
	return header
}

func TestWebSocket_NotMountedByDefault(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{}, nil)

	resp, _ := h.get(t, "/ws")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocket_RequiresSession(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{WebSocketEnabled: true}, nil)

	_, resp, err := dialWS(t, h, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_Conversation(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{WebSocketEnabled: true}, nil)

	conn, _, err := dialWS(t, h, sessionHeader(t, h))
	require.NoError(t, err)
	defer conn.Close()

	exchange := func(payload string) wsFrame {
		t.Helper()
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		return frame
	}

	assert.Equal(t, wsFrame{Reply: "re: hello"}, exchange(`{"question":"hello"}`))
	assert.Equal(t, wsFrame{Error: msgEmptyQuestion}, exchange(`{"question":"  "}`))
	assert.Equal(t, wsFrame{Error: msgInvalidRequest}, exchange(`not json`))
	assert.Equal(t, wsFrame{Reply: "re: again"}, exchange(`{"question":"again"}`))

	history, ok := h.chat.History(h.sessionID(t))
	require.True(t, ok, "websocket and HTTP share the session store")
	assert.Len(t, history, 4)
	assert.Equal(t, session.Turn{Role: session.RoleUser, Content: "hello"}, history[0])
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{WebSocketEnabled: true}, nil)

	header := sessionHeader(t, h)
	header.Set("Origin", "https://evil.example")

	_, resp, err := dialWS(t, h, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocket_AllowedOrigin(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{
		WebSocketEnabled: true,
		AllowedWSOrigins: []string{"https://skin.example"},
	}, nil)

	header := sessionHeader(t, h)
	header.Set("Origin", "https://skin.example")

	conn, _, err := dialWS(t, h, header)
	require.NoError(t, err)
	conn.Close()
}

func TestWebSocket_ClosedOnStop(t *testing.T) {
	h := newHarness(t, echoEngine(), Options{WebSocketEnabled: true}, nil)

	conn, _, err := dialWS(t, h, sessionHeader(t, h))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.server.Stop(ctx))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
