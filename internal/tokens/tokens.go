// Package tokens estimates token counts for context-window accounting.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken has no mapping for.
// Groq's Llama and Gemma models are close enough to cl100k_base for
// budget estimates.
const fallbackEncoding = "cl100k_base"

// Counter counts tokens using the encoding for a given model.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter returns a counter for the given model name, falling back
// to cl100k_base when the model is unknown.
func NewCounter(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("loading fallback encoding: %w", err)
		}
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountAll returns the total token count across all texts.
func (c *Counter) CountAll(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}
