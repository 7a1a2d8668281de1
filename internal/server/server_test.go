package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/admitline/admitline/pkg/agent"
	"github.com/admitline/admitline/pkg/call"
	"github.com/admitline/admitline/pkg/kv"
	"github.com/admitline/admitline/pkg/room"
	"github.com/admitline/admitline/pkg/tokens"
	"github.com/admitline/admitline/pkg/tts"
)

const desktopUA = "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0"
const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Safari/604.1"

// echoResponder replies with a fixed text regardless of the question.
type echoResponder struct {
	reply agent.Reply
}

func (e *echoResponder) Generate(context.Context, []agent.Turn, string) agent.Reply {
	return e.reply
}

// countingEngine produces fixed-size audio and counts synthesis calls.
type countingEngine struct {
	calls atomic.Int32
	delay time.Duration
}

func (e *countingEngine) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte{0xAA}, 1500))), nil
}

// pipeEngine streams whatever the test writes into the pipe.
type pipeEngine struct{ r *io.PipeReader }

func (p *pipeEngine) Synthesize(context.Context, string) (io.ReadCloser, error) {
	return p.r, nil
}

type fixture struct {
	srv    *httptest.Server
	tokens *tokens.Store
	engine *countingEngine
	orch   *call.Orchestrator
}

func newFixture(t *testing.T, reply agent.Reply, opts ...Option) *fixture {
	t.Helper()
	store := kv.NewMemory()
	t.Cleanup(func() { store.Close() })

	engine := &countingEngine{}
	tok := tokens.NewStore()
	orch := call.NewOrchestrator(&echoResponder{reply: reply}, call.NewStore(store))
	s := New(orch, tts.NewSynthesizer(engine), tok, opts...)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, tokens: tok, engine: engine, orch: orch}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestHealth(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	resp, err := http.Get(f.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	m := decodeBody(t, resp)
	if m["status"] != "ok" {
		t.Errorf("body = %v", m)
	}
}

func TestStartCall(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	resp := postJSON(t, f.srv.URL+"/api/start_call", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	m := decodeBody(t, resp)
	if m["call_id"] == "" {
		t.Error("missing call_id")
	}
	if m["greeting"] != agent.Greeting {
		t.Errorf("greeting = %v", m["greeting"])
	}
	if !strings.HasPrefix(m["audio_url"].(string), "/api/tts_stream/") {
		t.Errorf("audio_url = %v", m["audio_url"])
	}
}

func startCall(t *testing.T, f *fixture) string {
	t.Helper()
	resp := postJSON(t, f.srv.URL+"/api/start_call", nil)
	return decodeBody(t, resp)["call_id"].(string)
}

func TestQuery(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "The fee is 150000."})
	id := startCall(t, f)

	resp := postJSON(t, f.srv.URL+"/api/query", map[string]string{
		"call_id": id, "text": "what are the ees",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	m := decodeBody(t, resp)
	if m["transcript"] != "what are the fees" {
		t.Errorf("transcript = %v", m["transcript"])
	}
	if m["reply"] != "The fee is 150000." {
		t.Errorf("reply = %v", m["reply"])
	}
	if m["escalated"] != false || m["lead_captured"] != false {
		t.Errorf("flags = %v", m)
	}
}

func TestQueryMissingCallID(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	resp := postJSON(t, f.srv.URL+"/api/query", map[string]string{"text": "hello"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestQueryUnknownCall(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	resp := postJSON(t, f.srv.URL+"/api/query", map[string]string{
		"call_id": "missing", "text": "hello",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestQueryStream(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "First sentence. Second sentence."})
	id := startCall(t, f)

	resp := postJSON(t, f.srv.URL+"/api/query_stream", map[string]string{
		"call_id": id, "text": "tell me about fees",
	})
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var events []map[string]string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e map[string]string
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatal(err)
		}
		events = append(events, e)
	}

	if len(events) != 4 {
		t.Fatalf("events = %v", events)
	}
	if events[0]["type"] != "transcript" {
		t.Errorf("first event = %v", events[0])
	}
	if events[1]["type"] != "sentence" || events[1]["text"] != "First sentence." {
		t.Errorf("second event = %v", events[1])
	}
	if !strings.HasPrefix(events[1]["audio_url"], "/api/tts_stream/") {
		t.Errorf("sentence should carry an audio url: %v", events[1])
	}
	if events[3]["type"] != "done" {
		t.Errorf("last event = %v", events[3])
	}
}

func ttsGet(t *testing.T, f *fixture, token, ua string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/tts_stream/"+token, nil)
	req.Header.Set("User-Agent", ua)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestTTSStreamChunked(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	tok := f.tokens.Create("One sentence. Two sentences.")

	resp := ttsGet(t, f, tok, desktopUA)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if ar := resp.Header.Get("Accept-Ranges"); ar != "none" {
		t.Errorf("Accept-Ranges = %q", ar)
	}
	audio, _ := io.ReadAll(resp.Body)
	if len(audio) != 3000 {
		t.Errorf("audio length = %d, want 1500 per sentence", len(audio))
	}

	// One-time token: the second fetch is gone.
	resp2 := ttsGet(t, f, tok, desktopUA)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusGone {
		t.Errorf("second fetch status = %d, want 410", resp2.StatusCode)
	}
}

func TestTTSStreamChunkedProgressive(t *testing.T) {
	store := kv.NewMemory()
	t.Cleanup(func() { store.Close() })
	pr, pw := io.Pipe()
	tok := tokens.NewStore()
	orch := call.NewOrchestrator(&echoResponder{reply: agent.Reply{Text: "x"}}, call.NewStore(store))
	srv := httptest.NewServer(New(orch, tts.NewSynthesizer(&pipeEngine{r: pr}), tok))
	t.Cleanup(srv.Close)
	f := &fixture{srv: srv, tokens: tok}
	token := tok.Create("Only sentence.")

	// The first delivery chunk must reach the client while the engine is
	// still producing, so playback starts before synthesis finishes.
	wrote := make(chan struct{})
	go func() {
		defer close(wrote)
		pw.Write(bytes.Repeat([]byte{1}, 4096))
	}()
	resp := ttsGet(t, f, token, desktopUA)
	defer resp.Body.Close()

	first := make([]byte, 4096)
	if _, err := io.ReadFull(resp.Body, first); err != nil {
		t.Fatalf("first chunk before stream end: %v", err)
	}
	<-wrote

	pw.Write(bytes.Repeat([]byte{2}, 1000))
	pw.Close()
	rest, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1000 {
		t.Errorf("trailing bytes = %d, want 1000", len(rest))
	}
}

func TestTTSStreamBuffered(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	tok := f.tokens.Create("Only sentence.")

	resp := ttsGet(t, f, tok, iphoneUA)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if ar := resp.Header.Get("Accept-Ranges"); ar != "bytes" {
		t.Errorf("Accept-Ranges = %q", ar)
	}
	audio, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(audio) != 1500 {
		t.Errorf("audio length = %d", len(audio))
	}

	// iOS probes the URL again; the cache answers without resynthesis.
	resp2 := ttsGet(t, f, tok, iphoneUA)
	audio2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK || len(audio2) != 1500 {
		t.Fatalf("cached fetch: status %d, %d bytes", resp2.StatusCode, len(audio2))
	}
	if got := f.engine.calls.Load(); got != 1 {
		t.Errorf("engine calls = %d, want 1", got)
	}
}

func TestTTSStreamConcurrentBufferedSingleSynthesis(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	f.engine.delay = 150 * time.Millisecond
	tok := f.tokens.Create("Only sentence.")

	const n = 8
	var wg sync.WaitGroup
	lengths := make([]int, n)
	statuses := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := ttsGet(t, f, tok, iphoneUA)
			defer resp.Body.Close()
			audio, _ := io.ReadAll(resp.Body)
			lengths[i] = len(audio)
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	for i := range n {
		if statuses[i] != http.StatusOK || lengths[i] != 1500 {
			t.Errorf("fetch %d: status %d, %d bytes", i, statuses[i], lengths[i])
		}
	}
	if got := f.engine.calls.Load(); got != 1 {
		t.Errorf("engine calls = %d, want exactly 1", got)
	}
}

func TestEndCall(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	id := startCall(t, f)
	resp := postJSON(t, f.srv.URL+"/api/end_call", map[string]string{"call_id": id})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLeadsAfterEscalation(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: agent.NoInfoReply, Escalated: true})
	id := startCall(t, f)

	postJSON(t, f.srv.URL+"/api/query", map[string]string{
		"call_id": id, "text": "do you teach culinary arts",
	}).Body.Close()
	resp := postJSON(t, f.srv.URL+"/api/query", map[string]string{
		"call_id": id, "text": "my number is 03001234567",
	})
	m := decodeBody(t, resp)
	if m["lead_captured"] != true {
		t.Fatalf("turn = %v", m)
	}
	if m["escalated"] != true {
		t.Errorf("capture turn escalated = %v, want true", m["escalated"])
	}
	if m["reply"] != agent.AdmissionsContactReply {
		t.Errorf("reply = %v", m["reply"])
	}

	leadsResp, err := http.Get(f.srv.URL + "/api/leads")
	if err != nil {
		t.Fatal(err)
	}
	lm := decodeBody(t, leadsResp)
	leads := lm["leads"].([]any)
	if len(leads) != 1 {
		t.Fatalf("leads = %v", leads)
	}
	if leads[0].(map[string]any)["phone"] != "03001234567" {
		t.Errorf("lead = %v", leads[0])
	}
}

func TestRoomToken(t *testing.T) {
	f := newFixture(t, agent.Reply{Text: "x"})
	resp := postJSON(t, f.srv.URL+"/api/room_token", map[string]string{"room": "r", "identity": "i"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status = %d, want 503", resp.StatusCode)
	}

	iss, err := room.NewTokenIssuer("key", "secret", 0)
	if err != nil {
		t.Fatal(err)
	}
	f2 := newFixture(t, agent.Reply{Text: "x"}, WithRoomIssuer(iss))
	resp2 := postJSON(t, f2.srv.URL+"/api/room_token", map[string]string{"room": "admissions", "identity": "caller"})
	m := decodeBody(t, resp2)
	if resp2.StatusCode != http.StatusOK || m["token"] == "" {
		t.Fatalf("status %d, body %v", resp2.StatusCode, m)
	}
}
