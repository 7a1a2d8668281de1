// Package rag builds and queries the context index that grounds the
// assistant's answers. Source documents are split into overlapping chunks,
// vectorized with a TF-IDF model fitted over the whole corpus, and ranked
// by cosine similarity at query time.
//
// Retrieval combines two mechanisms:
//
//   - Forced injection: an ordered keyword→document rule table injects
//     specific documents in full whenever the query mentions a trigger
//     keyword. Pure similarity ranking is unreliable for short, jargon-heavy
//     spoken queries (transcription noise, domain abbreviations); the rules
//     guarantee the right reference document is present even when the
//     vector model ranks it low.
//   - Similarity ranking: the remaining budget is filled with the highest
//     scoring chunks not already covered by forced injection.
//
// The index is immutable after build. Rebuilding is a full reload-and-fit
// cycle; Retriever.Swap installs a new index atomically so in-flight
// readers are unaffected.
package rag

import (
	"errors"
	"strings"
)

// ErrNoChunks is returned by BuildIndex when the sources yield no usable
// text to fit the vectorization model on.
var ErrNoChunks = errors.New("rag: no usable chunks in source documents")

// Default retrieval parameters.
const (
	// DefaultChunkSize is the maximum chunk length for .txt sources.
	DefaultChunkSize = 800
	// DefaultJSONChunkSize is the maximum chunk length for .json sources,
	// which tolerate larger chunks since structure carries context.
	DefaultJSONChunkSize = 1200
	// DefaultChunkOverlap is the overlap between adjacent fixed-width
	// slices of an oversized paragraph.
	DefaultChunkOverlap = 100

	// DefaultContextBudget caps the total retrieved context in characters.
	// Roughly 4 chars/token against the hosted model's token-per-minute
	// budget, reserving headroom for prompt, query, and response.
	DefaultContextBudget = 14000

	// DefaultTopK is how many ranked chunks are considered.
	DefaultTopK = 6
	// DefaultMinScore is the similarity floor below which a ranked chunk
	// is not worth including.
	DefaultMinScore = 0.03

	// truncationMarker ends a chunk cut off by the character budget.
	truncationMarker = "\n...[truncated]"
	// truncationReserve is held back from the budget for the marker.
	truncationReserve = 80
	// truncationMin is the smallest remainder worth keeping; below this
	// the cut chunk is dropped outright.
	truncationMin = 500
)

// Chunk is an immutable unit of retrievable text: a bounded-length slice of
// one source document plus its fitted vector representation.
type Chunk struct {
	Source string
	Text   string

	// vector is the L2-normalized sparse TF-IDF representation.
	vector sparseVec
}

// mishearings maps words the transcription service reliably gets wrong on
// phone audio to their intended domain terms. Applied to queries before
// both retrieval and generation.
var mishearings = map[string]string{
	"ees":     "fees",
	"feez":    "fees",
	"fess":    "fees",
	"avionix": "avionics",
}

// CorrectMishearings replaces known misheard words in a transcript.
// Matching is case-insensitive and word-level; the result is lower-cased.
func CorrectMishearings(text string) string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		trimmed := strings.Trim(w, ".,!?;:")
		if fix, ok := mishearings[trimmed]; ok {
			words[i] = strings.Replace(w, trimmed, fix, 1)
		}
	}
	return strings.Join(words, " ")
}
