// Package httpapi exposes the drive-thru pipeline over HTTP: session
// lifecycle for the lane hardware, the audio turn endpoint, and the
// operational endpoints (health, readiness, Prometheus metrics).
//
// All request and response bodies are JSON with snake_case keys. Errors are
// returned as {"error": "..."} with a meaningful status code: 400 for
// malformed input, 404 for unknown sessions, 409 for writes against a
// session that is no longer current or a lane that is mid-turn, 5xx for
// everything else.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ordervox/ordervox/internal/observe"
	"github.com/ordervox/ordervox/internal/orchestrator"
	"github.com/ordervox/ordervox/internal/session"
	"github.com/ordervox/ordervox/internal/voice"
	"github.com/ordervox/ordervox/pkg/types"
)

// maxUploadBytes caps the multipart body of /ai/process-audio. Lane
// utterances are a few seconds of audio; 10 MiB is generous.
const maxUploadBytes = 10 << 20

// SessionStore is the slice of the session store the API needs.
type SessionStore interface {
	NewCar(ctx context.Context, restaurantID int) (*session.Session, error)
	NextCar(ctx context.Context) error
	Current(ctx context.Context) (*session.Session, error)
	Patch(ctx context.Context, id string, fields map[string]any) (*session.Session, error)
}

// TurnProcessor runs one audio turn end to end.
type TurnProcessor interface {
	ProcessAudio(ctx context.Context, req orchestrator.TurnRequest) (*orchestrator.TurnResult, error)
}

// VoiceService renders greeting audio for fresh sessions and retains raw
// customer clips for audit.
type VoiceService interface {
	Generate(ctx context.Context, req voice.Request) (voice.Result, error)
	SaveRecording(ctx context.Context, restaurantID int, filename string, clip types.AudioClip) (string, error)
}

// Server holds the API's dependencies and builds its [http.Handler].
type Server struct {
	sessions SessionStore
	turns    TurnProcessor
	voice    VoiceService
	checkers []Checker
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// Option customises a [Server].
type Option func(*Server)

// WithCheckers registers readiness checkers evaluated by /readyz.
func WithCheckers(checkers ...Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// WithMetrics sets the metrics instance used by the HTTP middleware.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds a Server around the session store, the turn pipeline,
// and the voice generator.
func NewServer(sessions SessionStore, turns TurnProcessor, voiceGen VoiceService, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		turns:    turns,
		voice:    voiceGen,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler returns the fully wired route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions/new-car", s.handleNewCar)
	mux.HandleFunc("POST /sessions/next-car", s.handleNextCar)
	mux.HandleFunc("GET /sessions/current", s.handleCurrentSession)
	mux.HandleFunc("PUT /sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("POST /ai/process-audio", s.handleProcessAudio)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNoCurrent):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotCurrent), errors.Is(err, orchestrator.ErrTurnInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
