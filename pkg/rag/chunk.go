package rag

import "strings"

// chunkText splits text into chunks of at most maxLen characters.
//
// The split is paragraph-aware: paragraphs (separated by blank lines) are
// packed into chunks until the next one would overflow. A single paragraph
// longer than maxLen falls back to fixed-width slices that overlap by
// overlap characters, so no slice loses all surrounding context at its
// boundary.
func chunkText(text string, maxLen, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	step := maxLen - overlap
	if step <= 0 {
		step = maxLen
	}

	var chunks []string
	current := ""
	for _, p := range strings.Split(text, "\n\n") {
		switch {
		case len(current)+len(p)+2 <= maxLen:
			if current == "" {
				current = p
			} else {
				current = strings.TrimSpace(current + "\n\n" + p)
			}
		case len(p) > maxLen:
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			for i := 0; i < len(p); i += step {
				end := i + maxLen
				if end > len(p) {
					end = len(p)
				}
				if c := strings.TrimSpace(p[i:end]); c != "" {
					chunks = append(chunks, c)
				}
			}
		default:
			if current != "" {
				chunks = append(chunks, current)
			}
			current = p
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
