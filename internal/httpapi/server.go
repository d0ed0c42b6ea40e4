package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/fruit-matcher/internal/ai"
	"github.com/spigell/fruit-matcher/internal/fruit"
	"github.com/spigell/fruit-matcher/internal/logger"
	"github.com/spigell/fruit-matcher/internal/matching"
	"github.com/spigell/fruit-matcher/internal/matchmaker"
	"github.com/spigell/fruit-matcher/internal/store"
)

const (
	CodeBadRequest    = "bad_request"
	CodeValidation    = "validation_failed"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeInvalidPair   = "invalid_pair"
	CodeAIDisabled    = "ai_disabled"
	CodeProviderError = "ai_provider_error"
	CodeInternalError = "internal_error"
)

const maxRequestBodyBytes = 1 << 20

// FruitStore is the subset of the store the API writes through.
type FruitStore interface {
	SaveFruit(ctx context.Context, f *fruit.Fruit) (string, error)
	GetFruit(ctx context.Context, id string) (*fruit.Fruit, error)
	ListMatches(ctx context.Context, seekerID string) ([]store.MatchRecord, error)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the fruit matching API.
type Server struct {
	fruits        FruitStore
	matcher       *matchmaker.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

func NewServer(fruits FruitStore, matcher *matchmaker.Service, l *zap.Logger) *Server {
	return &Server{
		fruits:  fruits,
		matcher: matcher,
		logger:  logger.WithFields(l),
		errorHandlers: []errorHandler{
			sentinelHandler(store.ErrNotFound, http.StatusNotFound, CodeNotFound),
			sentinelHandler(store.ErrAlreadyExists, http.StatusConflict, CodeConflict),
			sentinelHandler(matchmaker.ErrInvalidPair, http.StatusBadRequest, CodeInvalidPair),
			sentinelHandler(ai.ErrDisabled, http.StatusServiceUnavailable, CodeAIDisabled),
			sentinelHandler(ai.ErrProviderError, http.StatusBadGateway, CodeProviderError),
			sentinelHandler(ai.ErrEmptyResponse, http.StatusBadGateway, CodeProviderError),
		},
	}
}

// Routes mounts the API handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.Health)
	r.Route("/fruits", func(r chi.Router) {
		r.Post("/", s.CreateFruit)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetFruit)
			r.Get("/matches", s.FindMatches)
			r.Get("/history", s.MatchHistory)
			r.Post("/matches/{candidateID}/explanation", s.ExplainMatch)
		})
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"explanations": s.matcher.ExplanationsEnabled(),
	})
}

// CreateFruit handles POST /fruits. A body id that is already stored is a 409.
func (s *Server) CreateFruit(w http.ResponseWriter, r *http.Request) {
	var f fruit.Fruit
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes)).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	if _, err := s.fruits.SaveFruit(r.Context(), &f); err != nil {
		s.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, &f)
}

// GetFruit handles GET /fruits/{id}.
func (s *Server) GetFruit(w http.ResponseWriter, r *http.Request) {
	f, err := s.fruits.GetFruit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type matchResponse struct {
	matching.Match
	Reasons []string `json:"reasons"`
}

type matchesResponse struct {
	SeekerID string          `json:"seekerId"`
	Items    []matchResponse `json:"items"`
}

// FindMatches handles GET /fruits/{id}/matches.
// Query parameters: limit (default from config), include_matched, record (default true).
func (s *Server) FindMatches(w http.ResponseWriter, r *http.Request) {
	opts := matchmaker.Options{Record: true}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit == 0 {
			seeker, err := s.fruits.GetFruit(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				s.handleError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, matchesResponse{SeekerID: seeker.ID, Items: []matchResponse{}})
			return
		}
		opts.Limit = limit
	}

	for name, dst := range map[string]*bool{"include_matched": &opts.IncludeMatched, "record": &opts.Record} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, name+" must be a boolean")
			return
		}
		*dst = v
	}

	res, err := s.matcher.Match(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	resp := matchesResponse{SeekerID: res.Seeker.ID, Items: make([]matchResponse, 0, len(res.Matches))}
	for _, m := range res.Matches {
		resp.Items = append(resp.Items, matchResponse{Match: m, Reasons: matching.Reasons(res.Seeker, m)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// MatchHistory handles GET /fruits/{id}/history.
func (s *Server) MatchHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.fruits.GetFruit(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}

	records, err := s.fruits.ListMatches(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seekerId": id, "items": records})
}

// ExplainMatch handles POST /fruits/{id}/matches/{candidateID}/explanation.
func (s *Server) ExplainMatch(w http.ResponseWriter, r *http.Request) {
	explained, err := s.matcher.Explain(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "candidateID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explained)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
