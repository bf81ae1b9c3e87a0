package chunking

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures and splits text in token space. The production
// implementation wraps tiktoken; tests substitute cheaper counters.
type Counter interface {
	// Count returns the token count of text.
	Count(text string) int
	// SplitByTokens cuts text into windows of at most size tokens,
	// carrying overlap tokens between adjacent windows.
	SplitByTokens(text string, size, overlap int) []string
}

// TokenCounter is the tiktoken-backed Counter.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// Encodings are expensive to construct, so they are cached per model.
var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for the given model. Unknown
// models fall back to the cl100k_base encoding, which is close enough
// for size budgeting.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count of text.
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return len(tc.encoding.Encode(text, nil, nil))
}

// SplitByTokens cuts text into token windows. Used as the last resort
// when no separator can break an oversized piece.
func (tc *TokenCounter) SplitByTokens(text string, size, overlap int) []string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	ids := tc.encoding.Encode(text, nil, nil)
	if len(ids) <= size {
		return []string{text}
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var windows []string
	for start := 0; start < len(ids); start += step {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		windows = append(windows, tc.encoding.Decode(ids[start:end]))
		if end == len(ids) {
			break
		}
	}
	return windows
}

// Model returns the model name this counter was built for.
func (tc *TokenCounter) Model() string {
	return tc.model
}
