// Package tts turns reply text into playable audio. An Engine is one
// synthesis backend whose primitive is a byte stream, so audio can be
// forwarded to the caller's device while the backend is still producing it.
// Synthesizer adds the operational envelope: a hard time budget per reply,
// sanity checks on buffered audio, and fixed-size chunk delivery.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/api/iterator"
)

var (
	// ErrAudioTooSmall means the backend returned a payload too small to
	// be real audio, usually an error body with a 200 status.
	ErrAudioTooSmall = errors.New("tts: audio payload too small")
	// ErrEmptyText is returned when there is nothing to synthesize.
	ErrEmptyText = errors.New("tts: empty text")
)

const (
	// DefaultChunkSize is the transfer unit for progressive delivery.
	DefaultChunkSize = 4096
	// DefaultBudget bounds one full reply synthesis. Kept under typical
	// 30s gateway timeouts so the caller sees our fallback, not a 504.
	DefaultBudget = 28 * time.Second
	// minAudioBytes is the smallest payload accepted as valid audio.
	minAudioBytes = 1000
)

// Engine is a synthesis backend. Synthesize starts one call and returns
// the encoded audio (MP3 unless the implementation documents otherwise)
// as a stream the caller reads while the backend emits it. The caller
// must close the stream. Implementations must be safe for concurrent use.
type Engine interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Synthesizer wraps an Engine with budget and delivery concerns.
type Synthesizer struct {
	engine    Engine
	budget    time.Duration
	chunkSize int
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithBudget overrides the per-reply synthesis budget.
func WithBudget(d time.Duration) SynthesizerOption {
	return func(s *Synthesizer) { s.budget = d }
}

// WithChunkSize overrides the delivery chunk size.
func WithChunkSize(n int) SynthesizerOption {
	return func(s *Synthesizer) { s.chunkSize = n }
}

// NewSynthesizer creates a Synthesizer over engine.
func NewSynthesizer(engine Engine, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		engine:    engine,
		budget:    DefaultBudget,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChunkStream delivers one synthesis call's audio in transfer-sized chunks
// as the engine produces them.
type ChunkStream struct {
	body   io.ReadCloser
	buf    []byte
	cancel context.CancelFunc
	closed bool
}

// Next returns the next audio chunk, or iterator.Done after the stream
// ends. The returned slice is only valid until the following call.
func (c *ChunkStream) Next() ([]byte, error) {
	if c.closed {
		return nil, iterator.Done
	}
	n, err := io.ReadFull(c.body, c.buf)
	if err != nil {
		c.Close()
		if n > 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			return c.buf[:n], nil
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, iterator.Done
		}
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	return c.buf, nil
}

// Close releases the underlying stream. Safe to call more than once and
// after Next has returned iterator.Done.
func (c *ChunkStream) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	return c.body.Close()
}

// Stream starts synthesis and returns the audio as chunks forwarded from
// the engine while it is still producing, so playback can begin before the
// call finishes. The stream is bounded by the synthesis budget.
func (s *Synthesizer) Stream(ctx context.Context, text string) (*ChunkStream, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	body, err := s.engine.Synthesize(ctx, text)
	if err != nil {
		cancel()
		return nil, err
	}
	return &ChunkStream{body: body, buf: make([]byte, s.chunkSize), cancel: cancel}, nil
}

// synthesizeAll drains one engine call into memory.
func synthesizeAll(ctx context.Context, e Engine, text string) ([]byte, error) {
	body, err := e.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

// Speak synthesizes one piece of text within the budget, drains it, and
// validates the result.
func (s *Synthesizer) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	audio, err := synthesizeAll(ctx, s.engine, text)
	if err != nil {
		return nil, err
	}
	if len(audio) < minAudioBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrAudioTooSmall, len(audio))
	}
	return audio, nil
}

// SpeakAll synthesizes each sentence and concatenates the audio. The whole
// sequence shares one budget; MP3 frames concatenate into a stream players
// accept. A sentence that fails mid-sequence returns what was synthesized
// so far along with the error, so partial audio can still be served.
func (s *Synthesizer) SpeakAll(ctx context.Context, sentences []string) ([]byte, error) {
	if len(sentences) == 0 {
		return nil, ErrEmptyText
	}
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	var audio []byte
	for i, sentence := range sentences {
		if sentence == "" {
			continue
		}
		part, err := synthesizeAll(ctx, s.engine, sentence)
		if err != nil {
			err = fmt.Errorf("tts: sentence %d of %d: %w", i+1, len(sentences), err)
			if len(audio) >= minAudioBytes {
				return audio, err
			}
			return nil, err
		}
		audio = append(audio, part...)
	}
	if len(audio) < minAudioBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrAudioTooSmall, len(audio))
	}
	return audio, nil
}
