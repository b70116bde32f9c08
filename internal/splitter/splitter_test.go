package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randText produces deterministic separator-free text with no repeating
// pattern, so overlap regions between chunks are uniquely identifiable.
func randText(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	var sb strings.Builder
	state := uint64(0x9e3779b9)
	for i := 0; i < n; i++ {
		state = state*6364136223846793005 + 1442695040888963407
		sb.WriteByte(letters[state>>33%uint64(len(letters))])
	}
	return sb.String()
}

// reconstruct rebuilds the original text by appending each chunk minus
// the overlap it shares with the text accumulated so far.
func reconstruct(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	out := chunks[0]
	for _, chunk := range chunks[1:] {
		k := 0
		max := len(chunk)
		if len(out) < max {
			max = len(out)
		}
		for n := max; n > 0; n-- {
			if strings.HasSuffix(out, chunk[:n]) {
				k = n
				break
			}
		}
		out += chunk[k:]
	}
	return out
}

// overlapLen returns the length of the longest suffix of a that is a
// prefix of b.
func overlapLen(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}

func TestEmptyInput(t *testing.T) {
	s := New(0, -1)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\n  "))
}

func TestShortTextIsSingleChunk(t *testing.T) {
	s := New(DefaultChunkSize, DefaultOverlap)
	chunks := s.Split("A short paragraph that easily fits in one chunk.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph that easily fits in one chunk.", chunks[0])
}

func TestSeparatorFreeText(t *testing.T) {
	// 3000 characters with no separators at all.
	text := randText(3000)
	s := New(DefaultChunkSize, DefaultOverlap)

	chunks := s.Split(text)

	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 4)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), DefaultChunkSize, "chunk %d too long", i)
	}
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, overlapLen(chunks[i-1], chunks[i]), DefaultOverlap)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestOverlapCarriesContext(t *testing.T) {
	text := randText(3000)
	s := New(DefaultChunkSize, DefaultOverlap)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	// Interior boundaries carry the full overlap budget when the text
	// has no separators to cut at.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, DefaultOverlap, overlapLen(chunks[i-1], chunks[i]))
	}
}

func TestParagraphSplitting(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString(strings.Repeat(fmt.Sprintf("word%02d ", i), 42))
		sb.WriteString("\n\n")
	}
	text := sb.String()

	s := New(DefaultChunkSize, DefaultOverlap)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), DefaultChunkSize, "chunk %d too long", i)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSentenceSplitting(t *testing.T) {
	// One giant paragraph of distinct sentences, forcing the "." separator.
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString(fmt.Sprintf("Sentence number %d talks about topic %d in plain words. ", i, i*7))
	}
	text := strings.TrimSuffix(sb.String(), " ")

	s := New(DefaultChunkSize, DefaultOverlap)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), DefaultChunkSize, "chunk %d too long", i)
	}
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, overlapLen(chunks[i-1], chunks[i]), DefaultOverlap)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestCustomSizes(t *testing.T) {
	text := randText(100)
	s := New(30, 10)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 30)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestInvalidConfigFallsBackToDefaults(t *testing.T) {
	s := New(-5, 5000)
	assert.Equal(t, DefaultChunkSize, s.chunkSize)
	assert.Equal(t, DefaultOverlap, s.overlap)
}

func TestMultibyteTextNotCorrupted(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString(fmt.Sprintf("wörd%dé ", i))
	}
	text := sb.String()
	s := New(DefaultChunkSize, DefaultOverlap)

	chunks := s.Split(text)
	for i, chunk := range chunks {
		assert.True(t, strings.Contains(text, chunk), "chunk %d is not a substring of the input", i)
	}
	assert.Equal(t, text, reconstruct(chunks))
}
