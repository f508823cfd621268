// Package server exposes a Recommender over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zoobzio/moodrank"
	"go.uber.org/zap"
)

// MaxBodyBytes bounds the size of a rerank request body.
const MaxBodyBytes = 1 << 20

// Ranker is the part of moodrank.Recommender the server needs.
type Ranker interface {
	Rerank(ctx context.Context, moods []string, candidates []moodrank.Candidate) moodrank.Response
}

// Config bounds the inbound surface.
type Config struct {
	MaxCandidates     int // Candidates accepted per request
	RequestsPerMinute int // Per client IP on /v1; 0 disables limiting
}

// RerankRequest is the body of POST /v1/rerank.
type RerankRequest struct {
	Moods      []string             `json:"moods" validate:"max=20,dive,required,max=64"`
	Candidates []moodrank.Candidate `json:"candidates" validate:"dive"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the rerank API.
type Server struct {
	ranker   Ranker
	log      *zap.Logger
	gatherer prometheus.Gatherer
	cfg      Config
	validate *validator.Validate
}

// New creates a Server. A nil logger discards logs; a nil gatherer serves
// the default prometheus registry.
func New(ranker Ranker, log *zap.Logger, gatherer prometheus.Gatherer, cfg Config) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		ranker:   ranker,
		log:      log,
		gatherer: gatherer,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RequestsPerMinute > 0 {
			r.Use(httprate.Limit(s.cfg.RequestsPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				}),
			))
		}
		r.Post("/rerank", s.handleRerank)
	})

	return r
}

func (s *Server) handleRerank(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req RerankRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.MaxCandidates > 0 && len(req.Candidates) > s.cfg.MaxCandidates {
		writeError(w, http.StatusBadRequest, "too many candidates")
		return
	}

	resp := s.ranker.Rerank(r.Context(), req.Moods, req.Candidates)
	s.log.Debug("rerank served",
		zap.String("request_id", w.Header().Get(requestIDHeader)),
		zap.String("stage", resp.Stage.String()),
		zap.Int("items", len(resp.Items)),
	)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
