package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/iterator"

	"github.com/admitline/admitline/pkg/call"
	"github.com/admitline/admitline/pkg/kv"
)

// maxAudioUpload bounds one recorded turn. Thirty seconds of compressed
// speech is well under this.
const maxAudioUpload = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	c, err := s.orch.StartCall(r.Context())
	if err != nil {
		logError(r, "start call failed", err)
		writeError(w, http.StatusInternalServerError, "could not start call")
		return
	}
	greeting := c.Turns[0].Content
	writeJSON(w, http.StatusOK, map[string]any{
		"call_id":   c.ID,
		"greeting":  greeting,
		"audio_url": audioURL(s.tokens.Create(greeting)),
	})
}

// turnInput extracts the call ID and the caller's utterance from a query
// request: either JSON {call_id, text} or a multipart form with an audio
// recording that is transcribed first.
func (s *Server) turnInput(r *http.Request) (callID, transcript string, err error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
			return "", "", fmt.Errorf("parse form: %w", err)
		}
		callID = r.FormValue("call_id")
		if callID == "" {
			return "", "", errors.New("missing call_id")
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			return "", "", fmt.Errorf("audio file: %w", err)
		}
		defer file.Close()
		if s.transcriber == nil {
			return "", "", errors.New("transcription not configured")
		}
		audio, err := io.ReadAll(io.LimitReader(file, maxAudioUpload))
		if err != nil {
			return "", "", err
		}
		transcript, err = s.transcriber.Transcribe(r.Context(), audio, header.Filename)
		if err != nil {
			return "", "", fmt.Errorf("transcribe: %w", err)
		}
		return callID, transcript, nil
	}

	var body struct {
		CallID string `json:"call_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decode body: %w", err)
	}
	if body.CallID == "" {
		return "", "", errors.New("missing call_id")
	}
	return body.CallID, body.Text, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	callID, transcript, err := s.turnInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.orch.ProcessTurn(r.Context(), callID, transcript)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown call")
			return
		}
		logError(r, "turn failed", err)
		writeError(w, http.StatusInternalServerError, "could not process turn")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transcript":    res.Transcript,
		"reply":         res.Reply.Text,
		"escalated":     res.Reply.Escalated,
		"lead_captured": res.Lead != nil,
		"audio_url":     audioURL(s.tokens.Create(res.Reply.Text)),
	})
}

// handleQueryStream answers a turn as server-sent events: the corrected
// transcript, one event per reply sentence with its own audio URL, then a
// done marker. Sentence audio is parked under per-sentence tokens so the
// client can start playback on the first sentence immediately.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	callID, transcript, err := s.turnInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Proxies must pass events through as they are written.
	w.Header().Set("X-Accel-Buffering", "no")

	send := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	it := s.orch.ProcessTurnStream(r.Context(), callID, transcript)
	for {
		e, err := it.Next()
		if err == iterator.Done {
			return
		}
		switch e.Type {
		case call.EventSentence:
			send(map[string]string{
				"type":      e.Type,
				"text":      e.Text,
				"audio_url": audioURL(s.tokens.Create(e.Text)),
			})
		case call.EventError:
			logError(r, "stream turn failed", errors.New(e.Text))
			send(map[string]string{"type": e.Type, "text": "could not process turn"})
		default:
			send(e)
		}
	}
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CallID string `json:"call_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode body")
		return
	}
	if err := s.orch.EndCall(r.Context(), body.CallID); err != nil {
		logError(r, "end call failed", err)
		writeError(w, http.StatusInternalServerError, "could not end call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.orch.Store().Leads(r.Context())
	if err != nil {
		logError(r, "list leads failed", err)
		writeError(w, http.StatusInternalServerError, "could not list leads")
		return
	}
	if leads == nil {
		leads = []*call.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (s *Server) handleRoomToken(w http.ResponseWriter, r *http.Request) {
	if s.rooms == nil {
		writeError(w, http.StatusServiceUnavailable, "realtime rooms not configured")
		return
	}
	var body struct {
		Room     string `json:"room"`
		Identity string `json:"identity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "decode body")
		return
	}
	token, err := s.rooms.JoinToken(body.Room, body.Identity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
