// Package tokens issues one-time tokens that gate audio playback. A reply's
// text is parked under a fresh token; the device then fetches the audio from
// the playback endpoint with that token, which keeps reply text out of URLs
// and makes each audio URL single-use.
//
// Two consumption paths exist. Streaming clients consume the token once and
// receive chunked audio as it is synthesized. Buffering clients (Safari and
// iOS in-app browsers refuse to play chunked responses) get a
// fully-buffered response instead; since those clients also probe the URL
// more than once, the synthesized audio is cached for a short TTL and
// concurrent duplicate fetches wait for the first synthesis rather than
// triggering their own.
package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// cacheTTL bounds how long synthesized audio is replayable.
	cacheTTL = time.Hour
	// pendingTTL evicts tokens that were issued but never fetched.
	pendingTTL = 10 * time.Minute

	// waitStep and waitMax bound WaitCached polling.
	waitStep = 50 * time.Millisecond
	waitMax  = 10 * time.Second
)

type pendingEntry struct {
	text    string
	created time.Time
}

type cacheEntry struct {
	audio   []byte
	created time.Time
}

// Store holds pending reply text, in-flight synthesis markers, and cached
// audio, keyed by token. Safe for concurrent use. State is process-local;
// tokens do not survive a restart, which is fine because a reply's audio
// is only fetched seconds after the reply is produced.
type Store struct {
	mu         sync.Mutex
	pending    map[string]pendingEntry
	generating map[string]bool
	cache      map[string]cacheEntry
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		pending:    make(map[string]pendingEntry),
		generating: make(map[string]bool),
		cache:      make(map[string]cacheEntry),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sweep evicts expired cache and stale pending entries. Called with mu held
// from the mutating entry points, so no background goroutine is needed.
func (s *Store) sweep() {
	now := s.now()
	for tok, e := range s.cache {
		if now.Sub(e.created) > cacheTTL {
			delete(s.cache, tok)
		}
	}
	for tok, e := range s.pending {
		if now.Sub(e.created) > pendingTTL {
			delete(s.pending, tok)
		}
	}
}

// Create parks text under a fresh token and returns the token.
func (s *Store) Create(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	tok := uuid.NewString()
	s.pending[tok] = pendingEntry{text: text, created: s.now()}
	return tok
}

// Consume removes and returns the pending text for token. The second return
// is false if the token was never issued, already consumed, or expired.
func (s *Store) Consume(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	e, ok := s.pending[token]
	if !ok {
		return "", false
	}
	delete(s.pending, token)
	return e.text, true
}

// ConsumeForGeneration atomically consumes the pending text and marks
// synthesis in flight. Exactly one of several concurrent callers wins;
// the losers observe IsGenerating and can wait for the winner's result.
func (s *Store) ConsumeForGeneration(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	e, ok := s.pending[token]
	if !ok {
		return "", false
	}
	delete(s.pending, token)
	s.generating[token] = true
	return e.text, true
}

// MarkGenerating records that synthesis for token is in flight, so
// concurrent duplicate fetches wait instead of consuming resources.
func (s *Store) MarkGenerating(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating[token] = true
}

// ClearGenerating removes the in-flight marker without caching audio.
// Called when synthesis fails, releasing any waiters.
func (s *Store) ClearGenerating(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generating, token)
}

// IsGenerating reports whether synthesis for token is in flight.
func (s *Store) IsGenerating(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating[token]
}

// SetCached stores synthesized audio for token and clears the in-flight
// marker.
func (s *Store) SetCached(token string, audio []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.cache[token] = cacheEntry{audio: audio, created: s.now()}
	delete(s.generating, token)
}

// Cached returns the cached audio for token, if present and unexpired.
func (s *Store) Cached(token string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[token]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.created) > cacheTTL {
		delete(s.cache, token)
		return nil, false
	}
	return e.audio, true
}

// WaitCached polls for audio to appear in the cache, returning as soon as
// it does, when the in-flight marker is dropped without audio, or when the
// bounded wait (or ctx) expires.
func (s *Store) WaitCached(ctx context.Context, token string) ([]byte, bool) {
	deadline := s.now().Add(waitMax)
	ticker := time.NewTicker(waitStep)
	defer ticker.Stop()
	for {
		if audio, ok := s.Cached(token); ok {
			return audio, true
		}
		if !s.IsGenerating(token) {
			// Synthesis failed or never started; one last check in
			// case it cached between the two calls above.
			audio, ok := s.Cached(token)
			return audio, ok
		}
		if s.now().After(deadline) {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
	}
}
