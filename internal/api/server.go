// Package api exposes a selection controller as an HTTP JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/Sternrassler/catalog-select/pkg/selection"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 10

// Controller is the part of *selection.Controller the API drives.
type Controller interface {
	State() selection.State
	GoToPage(ctx context.Context, index int) error
	ToggleOne(id int64)
	SelectFirstNInput(ctx context.Context, text string) error
	ClearSelection()
}

// StateResponse is the JSON rendering of a controller state.
type StateResponse struct {
	selection.State
	LastError string `json:"last_error,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string        `json:"error"`
	Kind  string        `json:"kind"`
	State StateResponse `json:"state"`
}

// Server serves the selection API.
type Server struct {
	ctl            Controller
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewServer creates a server for ctl. A zero requestTimeout means requests
// are bounded only by the client connection.
func NewServer(ctl Controller, requestTimeout time.Duration) *Server {
	return &Server{
		ctl:            ctl,
		requestTimeout: requestTimeout,
		logger:         log.With().Str("component", "api").Logger(),
	}
}

// Routes returns the API handler.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/page", s.handlePage)
	mux.HandleFunc("POST /api/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, http.StatusOK)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("index: %w", err))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.ctl.GoToPage(ctx, index); err != nil {
		s.fail(w, err)
		return
	}
	s.writeState(w, http.StatusOK)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("id: %w", err))
		return
	}

	s.ctl.ToggleOne(id)
	s.writeState(w, http.StatusOK)
}

type selectRequest struct {
	Count json.RawMessage `json:"count"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	text, err := countText(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.ctl.SelectFirstNInput(ctx, text); err != nil {
		s.fail(w, err)
		return
	}
	s.writeState(w, http.StatusOK)
}

// countText extracts the raw count from ?count= or a JSON body. Parsing is
// left to the controller so all inputs share one validation path.
func countText(r *http.Request) (string, error) {
	if r.URL.Query().Has("count") {
		return r.URL.Query().Get("count"), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", errors.New("count is required")
	}

	var req selectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	if len(req.Count) == 0 {
		return "", errors.New("count is required")
	}

	var text string
	if err := json.Unmarshal(req.Count, &text); err == nil {
		return text, nil
	}
	// a bare JSON number or other literal is validated as typed text
	return string(req.Count), nil
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctl.ClearSelection()
	s.writeState(w, http.StatusOK)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// fail maps a controller error to a status code.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case selection.IsInvalidInput(err):
		s.writeError(w, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, selection.ErrSuperseded):
		s.writeError(w, http.StatusConflict, "superseded", err)
	case catalog.IsFetchError(err):
		s.writeError(w, http.StatusBadGateway, "fetch_error", err)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "timeout", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func (s *Server) writeState(w http.ResponseWriter, status int) {
	s.writeJSON(w, status, renderState(s.ctl.State()))
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind string, err error) {
	s.logger.Debug().Err(err).Int("status_code", status).Str("kind", kind).Msg("Request failed")
	s.writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Kind:  kind,
		State: renderState(s.ctl.State()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func renderState(st selection.State) StateResponse {
	resp := StateResponse{State: st}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	return resp
}
