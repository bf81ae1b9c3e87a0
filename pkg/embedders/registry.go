// Package embedders provides the embedding providers behind the
// ingestion pipeline: TEI (default), Ollama, and OpenAI. Providers are
// constructed from config and warmed up before first use.
package embedders

import (
	"context"
	"fmt"

	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/registry"
)

// Provider turns text into an embedding vector.
type Provider interface {
	Embed(text string) ([]float32, error)

	EmbedWithContext(ctx context.Context, text string) ([]float32, error)

	GetDimension() int

	GetModelName() string

	// Warmup embeds a probe so the first real request does not pay
	// model load time, and verifies the configured dimension.
	Warmup(ctx context.Context) error

	Close() error
}

// warmupProbe is the shared Warmup implementation.
func warmupProbe(ctx context.Context, e Provider) error {
	vector, err := e.EmbedWithContext(ctx, "warmup")
	if err != nil {
		return fmt.Errorf("warmup embed failed for %s: %w", e.GetModelName(), err)
	}
	if len(vector) != e.GetDimension() {
		return fmt.Errorf("embedder %s returned %d dimensions, expected %d",
			e.GetModelName(), len(vector), e.GetDimension())
	}
	return nil
}

type EmbedderRegistry struct {
	*registry.BaseRegistry[Provider]
}

func NewEmbedderRegistry() *EmbedderRegistry {
	return &EmbedderRegistry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

func (r *EmbedderRegistry) RegisterEmbedder(name string, provider Provider) error {
	if name == "" {
		return fmt.Errorf("embedder name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("embedder provider cannot be nil")
	}
	return r.Register(name, provider)
}

// NewFromConfig builds a provider for the configured embedder type.
func NewFromConfig(cfg *config.EmbedderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}

	switch cfg.Type {
	case "tei":
		return NewTEIEmbedderFromConfig(cfg)
	case "ollama":
		return NewOllamaEmbedderFromConfig(cfg)
	case "openai":
		return NewOpenAIEmbedderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
}

// CreateEmbedderFromConfig builds a provider and registers it.
func (r *EmbedderRegistry) CreateEmbedderFromConfig(name string, cfg *config.EmbedderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("embedder name cannot be empty")
	}

	provider, err := NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder provider: %w", err)
	}

	if err := r.RegisterEmbedder(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register embedder: %w", err)
	}

	return provider, nil
}

func (r *EmbedderRegistry) GetEmbedder(name string) (Provider, error) {
	provider, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("embedder provider '%s' not found", name)
	}
	return provider, nil
}
