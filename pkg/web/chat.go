package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ChlorophyllA/skin2/pkg/channels"
	"github.com/ChlorophyllA/skin2/pkg/session"
	"github.com/google/uuid"
)

const (
	msgSessionNotInitialized = "Session not initialized"
	msgEmptyQuestion         = "Empty question"
	msgInvalidRequest        = "Invalid request"
	msgInternalError         = "Internal server error"

	// maxBodyBytes bounds JSON request bodies
	maxBodyBytes = 64 << 10
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

// sessionID returns the caller's session ID from the cookie, if valid
func (s *Server) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.options.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// ensureSession returns the caller's session ID, minting a new one and
// setting the cookie when absent.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if id, ok := s.sessionID(r); ok {
		return id
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.options.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.options.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// handleDiagnose opens a consultation, issuing a session cookie if needed
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	s.ensureSession(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleAsk answers one question within the caller's session
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)

	sessionID, ok := s.sessionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgSessionNotInitialized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	question, err := parseQuestion(body)
	if err != nil {
		logger.Debug().Err(err).Msg("Rejected ask body")
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if question == "" {
		writeError(w, http.StatusBadRequest, msgEmptyQuestion)
		return
	}

	reply, err := s.deps.Dispatcher.Dispatch(r.Context(), channels.InboundMessage{
		Channel:   s.options.ChatChannel,
		SessionID: sessionID,
		Query:     question,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Error processing question")
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Reply: reply})
}

// parseQuestion validates an ask payload and returns the trimmed question
func parseQuestion(body []byte) (string, error) {
	if err := validateBody(askSchema, body); err != nil {
		return "", err
	}

	var req askRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", err
	}
	return strings.TrimSpace(req.Question), nil
}

// handleHistory returns the caller's conversation so far
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgSessionNotInitialized)
		return
	}

	history, found := s.deps.Conversations.History(sessionID)
	if !found {
		history = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

// handleReset forgets the caller's conversation. The cookie is kept, so the
// next question starts a fresh session under the same ID.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgSessionNotInitialized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"reset": s.deps.Conversations.Reset(sessionID)})
}
