package chunking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dhana009/haystack/pkg/fingerprint"
)

const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order, coarsest first.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ". ", " "}
}

// ErrNoChunks is returned when non-empty content produces no chunks.
var ErrNoChunks = errors.New("chunking produced no chunks")

// Config holds chunker settings. Size and Overlap are in tokens.
type Config struct {
	Size       int      `yaml:"size"`
	Overlap    int      `yaml:"overlap"`
	Separators []string `yaml:"separators"`
	Model      string   `yaml:"model"`
}

// SetDefaults fills in zero values. Overlap defaults only alongside
// Size so an explicit size with zero overlap stays overlap-free.
func (c *Config) SetDefaults() {
	if c.Size == 0 {
		c.Size = DefaultChunkSize
		if c.Overlap == 0 {
			c.Overlap = DefaultChunkOverlap
		}
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators()
	}
}

// Validate checks config invariants.
func (c *Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// Chunk is one window of a split document.
type Chunk struct {
	Content string
	Index   int
	Total   int
	Tokens  int
	Hash    string
}

// Chunker splits documents into token-budgeted windows by recursive
// separator descent: split on the coarsest separator that appears,
// re-split oversized parts with finer separators, then pack adjacent
// parts back into windows close to the size budget.
type Chunker struct {
	cfg     Config
	counter Counter
}

// New creates a chunker backed by a tiktoken counter.
func New(cfg Config) (*Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	counter, err := NewTokenCounter(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	return &Chunker{cfg: cfg, counter: counter}, nil
}

// NewWithCounter creates a chunker with an explicit counter.
func NewWithCounter(cfg Config, counter Counter) (*Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, errors.New("counter is required")
	}
	return &Chunker{cfg: cfg, counter: counter}, nil
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// NeedsChunking reports whether content exceeds the chunk size budget.
func (c *Chunker) NeedsChunking(content string) bool {
	return c.counter.Count(content) > c.cfg.Size
}

// CountTokens returns the token count of content.
func (c *Chunker) CountTokens(content string) int {
	return c.counter.Count(content)
}

type piece struct {
	text   string
	tokens int
}

// Chunk splits content into windows of at most Size tokens with
// Overlap tokens carried between adjacent windows. Chunk indexes are
// assigned in document order. Empty content yields no chunks and no
// error.
func (c *Chunker) Chunk(content string) ([]Chunk, error) {
	if content == "" {
		return nil, nil
	}

	pieces := c.split(content, c.cfg.Separators)
	windows := c.assemble(pieces)
	if len(windows) == 0 {
		return nil, ErrNoChunks
	}

	chunks := make([]Chunk, len(windows))
	for i, w := range windows {
		text := w.text
		chunks[i] = Chunk{
			Content: text,
			Index:   i,
			Total:   len(windows),
			Tokens:  w.tokens,
			Hash:    fingerprint.ContentHash(text),
		}
	}
	return chunks, nil
}

// split breaks text into pieces that each fit the size budget. Each
// piece keeps its trailing separator so document order survives
// reassembly.
func (c *Chunker) split(text string, separators []string) []piece {
	if text == "" {
		return nil
	}

	tokens := c.counter.Count(text)
	if tokens <= c.cfg.Size {
		return []piece{{text: text, tokens: tokens}}
	}

	if len(separators) == 0 {
		// Nothing left to split on. Cut in token space.
		var pieces []piece
		for _, w := range c.counter.SplitByTokens(text, c.cfg.Size, c.cfg.Overlap) {
			pieces = append(pieces, piece{text: w, tokens: c.counter.Count(w)})
		}
		return pieces
	}

	parts := strings.SplitAfter(text, separators[0])
	if len(parts) == 1 {
		return c.split(text, separators[1:])
	}

	var pieces []piece
	for _, part := range parts {
		if part == "" {
			continue
		}
		pieces = append(pieces, c.split(part, separators[1:])...)
	}
	return pieces
}

// assemble packs pieces into windows of at most Size tokens, carrying
// up to Overlap trailing tokens of each window into the next.
func (c *Chunker) assemble(pieces []piece) []piece {
	var windows []piece
	var window []piece
	windowTokens := 0
	carried := 0 // pieces at the head of window that repeat the previous window

	flush := func() {
		if len(window) <= carried {
			// Only carried overlap, nothing fresh. Do not emit a
			// duplicate window.
			return
		}
		var b strings.Builder
		total := 0
		for _, p := range window {
			b.WriteString(p.text)
			total += p.tokens
		}
		windows = append(windows, piece{text: b.String(), tokens: total})
	}

	for _, p := range pieces {
		if windowTokens+p.tokens > c.cfg.Size && len(window) > carried {
			flush()

			// Carry trailing pieces worth up to Overlap tokens, but
			// only if they leave room for the incoming piece.
			var carry []piece
			carryTokens := 0
			for i := len(window) - 1; i >= 0; i-- {
				t := window[i].tokens
				if carryTokens+t > c.cfg.Overlap || carryTokens+t+p.tokens > c.cfg.Size {
					break
				}
				carry = append([]piece{window[i]}, carry...)
				carryTokens += t
			}
			window = carry
			windowTokens = carryTokens
			carried = len(carry)
		}
		window = append(window, p)
		windowTokens += p.tokens
	}
	flush()

	return windows
}
