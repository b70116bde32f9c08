// Package splitter cuts document text into overlapping segments sized
// for embedding. It splits on a priority-ordered separator list and
// falls back to hard character boundaries, so every segment fits the
// chunk size while consecutive segments share a bounded overlap.
package splitter

import "strings"

const (
	// DefaultChunkSize is the target segment length in bytes.
	DefaultChunkSize = 1000

	// DefaultOverlap is the maximum shared tail between consecutive segments.
	// Overlap preserves context that spans a split point.
	DefaultOverlap = 200
)

// DefaultSeparators is the split priority: paragraph breaks, line
// breaks, sentence terminators, spaces, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Splitter performs recursive character splitting.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a Splitter. Non-positive size or negative overlap fall
// back to the defaults.
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// Split returns the ordered segments of text. Empty or whitespace-only
// input yields no segments.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// split recursively divides text with the best available separator and
// merges the resulting pieces into overlapping windows. Pieces that
// still exceed the chunk size are re-split with the remaining,
// finer-grained separators.
func (s *Splitter) split(text string, separators []string) []string {
	separator := ""
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			remaining = nil
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	pieces := cut(text, separator)

	var chunks []string
	var window []string
	for _, piece := range pieces {
		if len(piece) <= s.chunkSize {
			window = append(window, piece)
			continue
		}
		// Flush what fits, then recurse into the oversized piece.
		chunks = append(chunks, s.merge(window)...)
		window = nil
		if len(remaining) == 0 {
			chunks = append(chunks, piece)
			continue
		}
		chunks = append(chunks, s.split(piece, remaining)...)
	}
	chunks = append(chunks, s.merge(window)...)

	return chunks
}

// cut splits text on separator, keeping the separator attached to the
// preceding piece so that rejoining pieces reproduces the input. An
// empty separator cuts into single characters.
func cut(text, separator string) []string {
	if separator == "" {
		runes := []rune(text)
		pieces := make([]string, len(runes))
		for i, r := range runes {
			pieces[i] = string(r)
		}
		return pieces
	}

	parts := strings.Split(text, separator)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 {
			part += separator
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// merge concatenates pieces into windows of at most chunkSize bytes,
// carrying at most overlap bytes of tail into the next window.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		if total+len(piece) > s.chunkSize && total > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			// Drop leading pieces until the retained tail fits both the
			// overlap budget and the room the next piece needs.
			for len(window) > 0 && (total > s.overlap || total+len(piece) > s.chunkSize) {
				total -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += len(piece)
	}

	if total > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}
