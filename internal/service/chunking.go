package service

import (
	"strings"
)

const (
	// DefaultChunkSize is the fixed window width for document chunking.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is how many characters adjacent windows share.
	DefaultChunkOverlap = 120
)

// ChunkText splits text into fixed-width windows of size runes, each window
// starting size-overlap runes after the previous one so adjacent windows
// share overlap runes of context. The final window is truncated to the
// remaining tail. Empty input yields no chunks; input shorter than size
// yields a single chunk equal to the input. Panics are avoided by falling
// back to defaults when size/overlap are invalid.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 || overlap < 0 || overlap >= size {
		size = DefaultChunkSize
		overlap = DefaultChunkOverlap
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}

// SplitSentences splits freeform text into sentence-granularity fragments:
// newlines are flattened to spaces, the text is cut on sentence-terminal
// punctuation, and blank fragments are dropped. Short knowledge snippets
// keep their meaning at sentence boundaries, unlike long contract text
// which needs fixed windows with overlap.
func SplitSentences(text string) []string {
	flat := strings.Join(strings.Split(text, "\n"), " ")

	parts := strings.FieldsFunc(flat, func(r rune) bool {
		return r == '.' || r == '?' || r == '!'
	})

	fragments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			fragments = append(fragments, p)
		}
	}
	return fragments
}
