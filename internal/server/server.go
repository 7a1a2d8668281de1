// Package server exposes the voice assistant over HTTP: call lifecycle,
// text and audio turns, server-sent events for sentence-by-sentence
// streaming, and the token-gated audio playback endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/admitline/admitline/pkg/call"
	"github.com/admitline/admitline/pkg/room"
	"github.com/admitline/admitline/pkg/tokens"
	"github.com/admitline/admitline/pkg/tts"
)

// Transcriber converts recorded audio to text. *groq.Client satisfies this
// interface.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Server routes HTTP traffic to the call orchestrator.
type Server struct {
	orch        *call.Orchestrator
	synth       *tts.Synthesizer
	tokens      *tokens.Store
	transcriber Transcriber
	rooms       *room.TokenIssuer
	mux         *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithTranscriber enables audio uploads on the query endpoints.
func WithTranscriber(t Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithRoomIssuer enables the realtime room token endpoint.
func WithRoomIssuer(iss *room.TokenIssuer) Option {
	return func(s *Server) { s.rooms = iss }
}

// New creates a Server.
func New(orch *call.Orchestrator, synth *tts.Synthesizer, tok *tokens.Store, opts ...Option) *Server {
	s := &Server{
		orch:   orch,
		synth:  synth,
		tokens: tok,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/start_call", s.handleStartCall)
	s.mux.HandleFunc("POST /api/query", s.handleQuery)
	s.mux.HandleFunc("POST /api/query_stream", s.handleQueryStream)
	s.mux.HandleFunc("GET /api/tts_stream/{token}", s.handleTTSStream)
	s.mux.HandleFunc("POST /api/end_call", s.handleEndCall)
	s.mux.HandleFunc("GET /api/leads", s.handleLeads)
	s.mux.HandleFunc("POST /api/room_token", s.handleRoomToken)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// audioURL is where the client fetches the audio parked under token.
func audioURL(token string) string {
	return "/api/tts_stream/" + token
}

func logError(r *http.Request, msg string, err error) {
	slog.Error(msg, "method", r.Method, "path", r.URL.Path, "error", err)
}
