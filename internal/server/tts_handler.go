package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/iterator"

	"github.com/admitline/admitline/pkg/speech"
)

// bufferingClients are user-agent markers for browsers whose media stack
// refuses chunked audio responses: iOS Safari and every iOS in-app browser
// (all forced onto WebKit), including Chrome (crios) and Firefox (fxios).
// These get a fully-buffered, cacheable response instead.
var bufferingClients = []string{"iphone", "ipad", "ipod", "crios", "fxios"}

func needsBuffered(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, m := range bufferingClients {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

// handleTTSStream serves the audio parked under a one-time token.
//
// Streaming clients get chunks as sentences are synthesized, so playback
// starts before the full reply is rendered. Buffering clients get the whole
// reply at once; because those browsers probe the same URL repeatedly
// (preflight, range probe, actual playback), the audio is cached against
// the token and concurrent duplicates wait for the first synthesis.
func (s *Server) handleTTSStream(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if needsBuffered(r.UserAgent()) {
		s.serveBuffered(w, r, token)
		return
	}
	s.serveChunked(w, r, token)
}

func (s *Server) serveBuffered(w http.ResponseWriter, r *http.Request, token string) {
	if audio, ok := s.tokens.Cached(token); ok {
		writeBufferedAudio(w, audio)
		return
	}

	text, ok := s.tokens.ConsumeForGeneration(token)
	if !ok {
		// Someone else consumed it; wait for their synthesis.
		if s.tokens.IsGenerating(token) {
			if audio, ok := s.tokens.WaitCached(r.Context(), token); ok {
				writeBufferedAudio(w, audio)
				return
			}
			writeError(w, http.StatusGatewayTimeout, "audio generation timed out")
			return
		}
		writeError(w, http.StatusGone, "token expired or already used")
		return
	}

	// Detached from the request context: other clients may be waiting on
	// this synthesis, so the winner disconnecting must not abort it. The
	// synthesizer's own budget still bounds the work.
	audio, err := s.synth.SpeakAll(context.WithoutCancel(r.Context()), speech.SplitSentences(text))
	if len(audio) == 0 {
		s.tokens.ClearGenerating(token)
		logError(r, "synthesis failed", err)
		writeError(w, http.StatusBadGateway, "audio generation failed")
		return
	}
	if err != nil {
		logError(r, "partial synthesis", err)
	}
	s.tokens.SetCached(token, audio)
	writeBufferedAudio(w, audio)
}

func writeBufferedAudio(w http.ResponseWriter, audio []byte) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Write(audio)
}

func (s *Server) serveChunked(w http.ResponseWriter, r *http.Request, token string) {
	text, ok := s.tokens.Consume(token)
	if !ok {
		// A retry after a dropped connection can still be served from
		// cache if a buffered fetch populated it.
		if audio, ok := s.tokens.Cached(token); ok {
			writeBufferedAudio(w, audio)
			return
		}
		writeError(w, http.StatusGone, "token expired or already used")
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Accept-Ranges", "none")

	sent := false
	for _, sentence := range speech.SplitSentences(text) {
		stream, err := s.synth.Stream(r.Context(), sentence)
		if err != nil {
			chunkedFailure(w, r, sent, err)
			return
		}
		for {
			chunk, err := stream.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				stream.Close()
				chunkedFailure(w, r, sent, err)
				return
			}
			if _, err := w.Write(chunk); err != nil {
				stream.Close()
				return
			}
			sent = true
			if flusher != nil {
				flusher.Flush()
			}
		}
		stream.Close()
	}
}

// chunkedFailure reports a synthesis failure: a clean 502 while nothing is
// on the wire yet, a logged stop once audio bytes have been sent.
func chunkedFailure(w http.ResponseWriter, r *http.Request, sent bool, err error) {
	if sent {
		logError(r, "synthesis stopped mid-reply", err)
		return
	}
	logError(r, "synthesis failed", err)
	writeError(w, http.StatusBadGateway, "audio generation failed")
}
