package rag

import (
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
)

// Retriever answers context queries against the current index. It is safe
// for concurrent use; Swap replaces the index atomically without blocking
// in-flight retrievals.
type Retriever struct {
	idx atomic.Pointer[Index]

	rules    []Rule
	baseline []string
	synonyms []SynonymHint
	budget   int
	topK     int
	minScore float64
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithRules replaces the default forced-injection rule table.
func WithRules(rules []Rule, baseline []string) RetrieverOption {
	return func(r *Retriever) {
		r.rules = rules
		r.baseline = baseline
	}
}

// WithSynonyms replaces the default query expansion hints.
func WithSynonyms(hints []SynonymHint) RetrieverOption {
	return func(r *Retriever) { r.synonyms = hints }
}

// WithBudget overrides the context character budget.
func WithBudget(chars int) RetrieverOption {
	return func(r *Retriever) { r.budget = chars }
}

// WithRanking overrides the ranked-chunk count and similarity floor.
func WithRanking(topK int, minScore float64) RetrieverOption {
	return func(r *Retriever) {
		r.topK = topK
		r.minScore = minScore
	}
}

// NewRetriever creates a Retriever over idx. A nil idx is allowed; Retrieve
// returns empty context until Swap installs a real index.
func NewRetriever(idx *Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		rules:    DefaultRules,
		baseline: DefaultBaseline,
		synonyms: DefaultSynonyms,
		budget:   DefaultContextBudget,
		topK:     DefaultTopK,
		minScore: DefaultMinScore,
	}
	for _, opt := range opts {
		opt(r)
	}
	if idx != nil {
		r.idx.Store(idx)
	}
	return r
}

// Swap installs a new index. In-flight retrievals finish on the old one.
func (r *Retriever) Swap(idx *Index) { r.idx.Store(idx) }

// Index returns the current index, or nil if none is installed.
func (r *Retriever) Index() *Index { return r.idx.Load() }

// Retrieve returns the grounding context for query: forced documents first,
// then the best-scoring chunks, joined by a delimiter and capped by the
// character budget. Returns "" only when no index is installed.
func (r *Retriever) Retrieve(query string) string {
	idx := r.idx.Load()
	if idx == nil {
		return ""
	}

	q := CorrectMishearings(query)
	expanded := r.expand(q)

	var parts []string
	remaining := r.budget
	forced := make(map[string]bool)

	appendPart := func(source, text string) bool {
		part := "[" + source + "]\n" + text
		if len(part) <= remaining {
			parts = append(parts, part)
			remaining -= len(part) + 10
			return true
		}
		keep := remaining - truncationReserve
		if keep < truncationMin {
			return false
		}
		parts = append(parts, part[:keep]+truncationMarker)
		remaining = 0
		return false
	}

	// Forced injection: whole documents named by matching rules, or the
	// baseline set when nothing matches.
	docs := r.forcedDocs(q)
	for _, name := range docs {
		text, ok := idx.docs[name]
		if !ok {
			slog.Warn("rule names missing document", "name", name)
			continue
		}
		forced[name] = true
		if !appendPart(name, text) {
			break
		}
	}

	// Similarity ranking fills whatever budget is left.
	if remaining > truncationMin {
		qv := idx.vec.transform(expanded)
		type scored struct {
			i     int
			score float64
		}
		ranked := make([]scored, 0, len(idx.chunks))
		for i := range idx.chunks {
			if s := qv.dot(idx.chunks[i].vector); s > r.minScore {
				ranked = append(ranked, scored{i, s})
			}
		}
		sort.Slice(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
		if len(ranked) > r.topK {
			ranked = ranked[:r.topK]
		}
		for _, s := range ranked {
			c := idx.chunks[s.i]
			if forced[c.Source] {
				continue
			}
			if !appendPart(c.Source, c.Text) {
				break
			}
		}
	}

	return strings.Join(parts, "\n\n---\n\n")
}

// forcedDocs returns the documents named by matching rules, deduplicated in
// rule order, falling back to the baseline set.
func (r *Retriever) forcedDocs(q string) []string {
	var docs []string
	seen := make(map[string]bool)
	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(q, kw) {
				for _, d := range rule.Docs {
					if !seen[d] {
						seen[d] = true
						docs = append(docs, d)
					}
				}
				break
			}
		}
	}
	if len(docs) == 0 {
		return r.baseline
	}
	return docs
}

// expand appends synonym expansions for any matching trigger.
func (r *Retriever) expand(q string) string {
	var sb strings.Builder
	sb.WriteString(q)
	for _, h := range r.synonyms {
		for _, t := range h.Triggers {
			if strings.Contains(q, t) {
				sb.WriteByte(' ')
				sb.WriteString(h.Expansion)
				break
			}
		}
	}
	return sb.String()
}
