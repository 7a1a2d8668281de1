package rag

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// sparseVec is a sparse vector over vocabulary term indices.
type sparseVec map[int]float64

// dot computes the inner product of two sparse vectors. For L2-normalized
// vectors this is the cosine similarity.
func (a sparseVec) dot(b sparseVec) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for i, x := range a {
		sum += x * b[i]
	}
	return sum
}

// stopwords are dropped during tokenization. Short functional English words
// that carry no retrieval signal for this corpus.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "do": true, "does": true,
	"for": true, "from": true, "had": true, "has": true, "have": true,
	"how": true, "i": true, "if": true, "in": true, "is": true, "it": true,
	"its": true, "me": true, "my": true, "no": true, "not": true, "of": true,
	"on": true, "or": true, "our": true, "so": true, "that": true,
	"the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "to": true, "was": true,
	"we": true, "were": true, "what": true, "when": true, "which": true,
	"who": true, "will": true, "with": true, "would": true, "you": true,
	"your": true,
}

// tokenize lower-cases text and splits it into alphanumeric word tokens,
// dropping single characters and stopwords.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// vectorizer is a TF-IDF model fitted over one corpus of chunk texts.
// After fitting it is immutable and safe for concurrent transforms.
type vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// vectorizer fitting parameters.
const (
	maxFeatures = 5000
	// maxDocFreq drops terms appearing in more than this fraction of
	// chunks; near-universal terms add noise, not signal.
	maxDocFreq = 0.95
)

// fitVectorizer builds the vocabulary and IDF weights from the corpus.
// Returns nil if no terms survive filtering.
func fitVectorizer(texts []string) *vectorizer {
	n := len(texts)
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, tok := range tokenize(text) {
			tf[tok]++
			seen[tok] = true
		}
		for tok := range seen {
			df[tok]++
		}
	}

	type termCount struct {
		term  string
		count int
	}
	var terms []termCount
	for term, count := range tf {
		if n > 1 && float64(df[term])/float64(n) > maxDocFreq {
			continue
		}
		terms = append(terms, termCount{term, count})
	}
	if len(terms) == 0 {
		return nil
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].count != terms[j].count {
			return terms[i].count > terms[j].count
		}
		return terms[i].term < terms[j].term
	})
	if len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}

	v := &vectorizer{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	for i, tc := range terms {
		v.vocab[tc.term] = i
		// Smoothed IDF: every term behaves as if seen in one extra
		// document, so nothing divides by zero and weights stay finite.
		v.idf[i] = math.Log(float64(1+n)/float64(1+df[tc.term])) + 1
	}
	return v
}

// transform maps text to its L2-normalized TF-IDF vector. Terms outside the
// fitted vocabulary are ignored; a text with no known terms yields an empty
// vector, which has zero similarity to everything.
func (v *vectorizer) transform(text string) sparseVec {
	counts := make(map[int]int)
	for _, tok := range tokenize(text) {
		if i, ok := v.vocab[tok]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return sparseVec{}
	}
	vec := make(sparseVec, len(counts))
	var norm float64
	for i, c := range counts {
		w := float64(c) * v.idf[i]
		vec[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
