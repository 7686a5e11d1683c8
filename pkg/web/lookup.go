package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ChlorophyllA/skin2/pkg/derm"
	"github.com/ChlorophyllA/skin2/pkg/hospital"
)

// intParam parses an optional integer query parameter
func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// handleSuggestions serves autocomplete for province and hospital names
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	field := q.Get("field")
	if field == "" {
		field = "province"
	}
	limit, ok := intParam(r, "limit", hospital.DefaultSuggestionLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	values, err := s.deps.Hospitals.Suggestions(r.Context(), field, q.Get("q"), limit)
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.deps.Hospitals.Cities(r.Context(), r.URL.Query().Get("province"))
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.deps.Hospitals.Levels(r.Context())
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// handleSearch runs a filtered, paged hospital search. An empty body
// searches everything.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		body = []byte("{}")
	}

	if err := validateBody(searchSchema, body); err != nil {
		requestLogger(r).Debug().Err(err).Msg("Rejected search body")
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var query hospital.Query
	if err := json.Unmarshal(body, &query); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	result, err := s.deps.Hospitals.Search(r.Context(), query)
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSkinPage serves one encyclopedia entry per page
func (s *Server) handleSkinPage(w http.ResponseWriter, r *http.Request) {
	page, ok := intParam(r, "page", 1)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid page")
		return
	}

	result, err := s.deps.Skin.Page(r.Context(), page)
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSkinRandom(w http.ResponseWriter, r *http.Request) {
	row, err := s.deps.Skin.Random(r.Context())
	if err != nil {
		s.lookupFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleDisease describes one lesion class by its code, e.g. MEL
func (s *Server) handleDisease(w http.ResponseWriter, r *http.Request) {
	d, ok := derm.Lookup(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown disease code")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) lookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r).Error().Err(err).Str("path", r.URL.Path).Msg("Lookup failed")
	writeError(w, http.StatusInternalServerError, msgInternalError)
}
