// Package api exposes the HTTP interface of the search gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/newsforge/newsforge/internal/news"
	"github.com/newsforge/newsforge/internal/search"
	"github.com/newsforge/newsforge/internal/telemetry"
)

const defaultK = 10

// Server wires HTTP handlers to the fuser and the backing stores.
type Server struct {
	router chi.Router
	fuser  *search.Fuser
	store  news.ArticleStore
	index  news.SearchIndex
	log    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(fuser *search.Fuser, store news.ArticleStore, index news.SearchIndex, log *zap.Logger) *Server {
	s := &Server{
		fuser: fuser,
		store: store,
		index: index,
		log:   log,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(telemetry.Middleware)

	r.Get("/search", s.search)
	r.Get("/health", s.healthz)
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", telemetry.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type searchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, s.log, http.StatusBadRequest, "missing query parameter q", "bad_request")
		return
	}

	k := defaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, s.log, http.StatusBadRequest, "k must be a positive integer", "bad_request")
			return
		}
		k = parsed
	}

	results, err := s.fuser.Search(r.Context(), query, k)
	if err != nil {
		var fusionErr *search.FusionError
		if errors.As(err, &fusionErr) {
			s.log.Warn("hybrid query failed", zap.String("query", query), zap.Error(err))
			writeError(w, s.log, http.StatusBadGateway, fusionErr.Error(), search.FusionCode)
			return
		}
		writeError(w, s.log, http.StatusInternalServerError, err.Error(), "internal")
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, s.log, http.StatusOK, searchResponse{Query: query, Results: results})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok", "index": "ok"}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := s.index.Ping(ctx); err != nil {
		checks["index"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, s.log, status, checks)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, status int, msg, code string) {
	writeJSON(w, log, status, map[string]string{"error": msg, "code": code})
}
