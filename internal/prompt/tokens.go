package prompt

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with the cl100k_base encoding, matching
// GPT-3.5/GPT-4/DeepSeek tokenization.
type TokenCounter struct {
	tokenizer *tiktoken.Tiktoken
}

// NewTokenCounter initializes the tokenizer. When the encoding cannot be
// loaded, Count returns 0 for every input instead of failing.
func NewTokenCounter() *TokenCounter {
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		tokenizer = nil
	}
	return &TokenCounter{tokenizer: tokenizer}
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	if c.tokenizer == nil {
		return 0
	}
	return len(c.tokenizer.Encode(text, nil, nil))
}
