package web

import (
	"net/http"
	"time"

	"github.com/ChlorophyllA/skin2/pkg/channels"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const wsWriteTimeout = 10 * time.Second

type wsFrame struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// checkOrigin allows same-origin upgrades, plus any origin listed in
// AllowedWSOrigins ("*" allows all).
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.options.AllowedWSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// handleWebSocket serves a chat over one connection. Each text frame
// {"question": "..."} is answered in order with {"reply"} or {"error"}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	sessionID, ok := s.sessionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgSessionNotInitialized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	ip := clientIP(r)
	s.trackWebSocket(conn)
	defer func() {
		s.untrackWebSocket(conn)
		conn.Close()
		logger.Info().Str("clientId", clientID).Msg("Client disconnected")
	}()

	logger.Info().Str("clientId", clientID).Msg("Client connected")

	conn.SetReadLimit(maxBodyBytes)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error().Err(err).Str("clientId", clientID).Msg("WebSocket error")
			}
			return
		}

		frame := s.answerFrame(r, ip, sessionID, message)

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			logger.Error().Err(err).Str("clientId", clientID).Msg("Failed to send response")
			return
		}
	}
}

func (s *Server) answerFrame(r *http.Request, ip, sessionID string, message []byte) wsFrame {
	allowed, _ := s.rateLimiter.Acquire(ip)
	if !allowed {
		return wsFrame{Error: "Too many requests"}
	}
	defer s.rateLimiter.Release(ip)

	question, err := parseQuestion(message)
	if err != nil {
		return wsFrame{Error: msgInvalidRequest}
	}
	if question == "" {
		return wsFrame{Error: msgEmptyQuestion}
	}

	reply, err := s.deps.Dispatcher.Dispatch(r.Context(), channels.InboundMessage{
		Channel:   s.options.WebSocketChannel,
		SessionID: sessionID,
		Query:     question,
	})
	if err != nil {
		requestLogger(r).Error().Err(err).Msg("Error processing question")
		return wsFrame{Error: msgInternalError}
	}

	return wsFrame{Reply: reply}
}

func (s *Server) trackWebSocket(conn *websocket.Conn) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	s.wsConns[conn] = struct{}{}
}

func (s *Server) untrackWebSocket(conn *websocket.Conn) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	delete(s.wsConns, conn)
}

func (s *Server) closeWebSockets() {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	for conn := range s.wsConns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
