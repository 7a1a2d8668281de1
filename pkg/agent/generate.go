package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/admitline/admitline/pkg/groq"
	"github.com/admitline/admitline/pkg/rag"
)

// Generation parameters. Low temperature keeps fee amounts and dates
// verbatim from the context; the token cap matches the two-to-three
// sentence rule in the prompt.
const (
	DefaultModel = "llama-3.1-8b-instant"
	temperature  = 0.2
	maxTokens    = 150

	// minTranscriptLen is the shortest corrected transcript treated as an
	// utterance rather than noise.
	minTranscriptLen = 3
)

// Credential is one hosted-inference API key. Name appears in logs only.
type Credential struct {
	Name   string
	APIKey string
}

// Retriever supplies grounding context for a query.
// *rag.Retriever satisfies this interface.
type Retriever interface {
	Retrieve(query string) string
}

// ChatFunc runs one completion against one credential. Tests substitute
// this to script ladder outcomes.
type ChatFunc func(ctx context.Context, cred Credential, req groq.ChatRequest) (string, error)

// Generator turns caller queries into replies.
type Generator struct {
	retriever Retriever
	creds     []Credential
	models    []string
	facts     string
	chat      ChatFunc
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithModels overrides the ordered model ladder.
func WithModels(models ...string) GeneratorOption {
	return func(g *Generator) { g.models = models }
}

// WithFacts replaces the pinned authoritative facts in the prompt.
func WithFacts(facts string) GeneratorOption {
	return func(g *Generator) { g.facts = facts }
}

// WithChatFunc substitutes the completion transport, for tests.
func WithChatFunc(fn ChatFunc) GeneratorOption {
	return func(g *Generator) { g.chat = fn }
}

// NewGenerator creates a Generator that tries each credential in order and,
// within a credential, each model in order.
func NewGenerator(retriever Retriever, creds []Credential, opts ...GeneratorOption) *Generator {
	g := &Generator{
		retriever: retriever,
		creds:     creds,
		models:    []string{DefaultModel},
		facts:     DefaultFacts,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.chat == nil {
		clients := make(map[string]*groq.Client, len(creds))
		for _, c := range creds {
			clients[c.Name] = groq.NewClient(c.APIKey, "")
		}
		g.chat = func(ctx context.Context, cred Credential, req groq.ChatRequest) (string, error) {
			return clients[cred.Name].Chat(ctx, req)
		}
	}
	return g
}

// Generate produces the reply for one caller turn.
//
// Fast paths short-circuit before retrieval: a transcript too short to be
// an utterance asks the caller to repeat, a bare thanks/goodbye gets a
// parting line. Everything
// else is answered by the model over retrieved context, walking the
// (credential, model) ladder:
//
//   - success with non-empty text wins;
//   - an empty reply or a transient error moves to the next model;
//   - a rate-limit or auth error burns the whole credential, since every
//     model on it shares the same quota and key.
//
// If the ladder is exhausted the caller hears the technical-difficulty
// line, which doubles as an escalation.
func (g *Generator) Generate(ctx context.Context, history []Turn, transcript string) Reply {
	query := strings.TrimSpace(rag.CorrectMishearings(transcript))
	if len(query) < minTranscriptLen {
		// Too short to be a question; usually line noise the transcriber
		// rendered as a stray syllable.
		return Reply{Text: clarifyReply}
	}
	if isParting(query) {
		return Reply{Text: partingReply}
	}

	retrievalQuery := query
	if isReferential(query) {
		if prev := lastUserQuery(history); prev != "" {
			retrievalQuery = prev + " " + query
		}
	}
	ragContext := g.retriever.Retrieve(retrievalQuery)
	if ragContext == "" {
		// No index installed; nothing to ground an answer in.
		return Reply{Text: NoInfoReply, Escalated: true}
	}
	messages := buildMessages(ragContext, g.facts, history, query)

	for _, cred := range g.creds {
		for _, model := range g.models {
			text, err := g.chat(ctx, cred, groq.ChatRequest{
				Model:       model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				kind := groq.Classify(err)
				slog.Warn("completion failed", "credential", cred.Name, "model", model, "kind", kind, "error", err)
				if kind == groq.KindRateLimited || kind == groq.KindAuth {
					break
				}
				continue
			}
			if text == "" {
				slog.Warn("empty completion", "credential", cred.Name, "model", model)
				continue
			}
			return classify(text, model)
		}
	}

	slog.Error("all credentials and models exhausted")
	return Reply{Text: TechnicalDifficultyReply, Escalated: true}
}
