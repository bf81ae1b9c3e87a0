// Package databases provides the vector store adapter used by the
// indexing pipeline. Providers hide the wire protocol of the external
// store; the pipeline speaks in Points, filter trees, and opaque
// scroll cursors.
package databases

import (
	"context"
	"fmt"

	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/filter"
	"github.com/Dhana009/haystack/pkg/registry"
)

// DefaultScrollLimit caps scroll pages. Bulk operations page at this
// size so a large collection never materializes in one response.
const DefaultScrollLimit = 100

// Point is one stored record: a UUID point ID, an optional embedding,
// and the payload as the store returned it.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float32 `json:"score"`
}

// ScrollPage is one page of a filtered scroll. NextOffset is nil when
// the scroll is exhausted.
type ScrollPage struct {
	Points     []Point
	NextOffset *PointRef
}

// CollectionInfo summarizes a collection: live point count, configured
// vector size, and which payload fields carry indexes.
type CollectionInfo struct {
	PointsCount   uint64
	VectorSize    uint64
	Status        string
	IndexedFields []string
}

// StoreAdapter is the provider-neutral store contract.
type StoreAdapter interface {
	Scroll(ctx context.Context, collection string, f filter.Node, limit uint32, offset *PointRef, withPayload, withVectors bool) (*ScrollPage, error)

	Upsert(ctx context.Context, collection string, points []Point) error

	Delete(ctx context.Context, collection string, ids []string) error

	SetPayload(ctx context.Context, collection string, ids []string, payload map[string]any) error

	Retrieve(ctx context.Context, collection string, ids []string, withPayload, withVectors bool) ([]Point, error)

	Search(ctx context.Context, collection string, vector []float32, f filter.Node, topK int) ([]ScoredPoint, error)

	Count(ctx context.Context, collection string, f filter.Node) (uint64, error)

	CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error

	EnsureKeywordIndex(ctx context.Context, collection string, field string) error

	Close() error
}

// ScrollAll walks a filtered scroll to exhaustion in pages of
// DefaultScrollLimit, invoking fn once per non-empty page. The context
// is checked between pages so a cancelled bulk operation stops at a
// page boundary.
func ScrollAll(ctx context.Context, store StoreAdapter, collection string, f filter.Node, withPayload, withVectors bool, fn func(points []Point) error) error {
	var offset *PointRef
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := store.Scroll(ctx, collection, f, DefaultScrollLimit, offset, withPayload, withVectors)
		if err != nil {
			return err
		}
		if len(page.Points) > 0 {
			if err := fn(page.Points); err != nil {
				return err
			}
		}
		if page.NextOffset == nil {
			return nil
		}
		offset = page.NextOffset
	}
}

// CollectAll gathers every point matching the filter. Callers that can
// process page-wise should prefer ScrollAll.
func CollectAll(ctx context.Context, store StoreAdapter, collection string, f filter.Node, withPayload, withVectors bool) ([]Point, error) {
	var all []Point
	err := ScrollAll(ctx, store, collection, f, withPayload, withVectors, func(points []Point) error {
		all = append(all, points...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// StoreRegistry holds named store providers.
type StoreRegistry struct {
	*registry.BaseRegistry[StoreAdapter]
}

func NewStoreRegistry() *StoreRegistry {
	return &StoreRegistry{
		BaseRegistry: registry.NewBaseRegistry[StoreAdapter](),
	}
}

func (r *StoreRegistry) RegisterStore(name string, store StoreAdapter) error {
	if name == "" {
		return fmt.Errorf("store name cannot be empty")
	}
	if store == nil {
		return fmt.Errorf("store provider cannot be nil")
	}
	return r.Register(name, store)
}

func (r *StoreRegistry) GetStore(name string) (StoreAdapter, error) {
	store, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("store provider '%s' not found", name)
	}
	return store, nil
}

// NewStoreFromConfig builds a provider for the configured store type.
func NewStoreFromConfig(cfg *config.VectorStoreConfig) (StoreAdapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config cannot be nil")
	}

	switch cfg.Type {
	case "qdrant":
		return NewQdrantStoreFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// CreateStoreFromConfig builds a provider and registers it under name.
func (r *StoreRegistry) CreateStoreFromConfig(name string, cfg *config.VectorStoreConfig) (StoreAdapter, error) {
	if name == "" {
		return nil, fmt.Errorf("store name cannot be empty")
	}

	store, err := NewStoreFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create store provider: %w", err)
	}

	if err := r.RegisterStore(name, store); err != nil {
		return nil, fmt.Errorf("failed to register store: %w", err)
	}

	return store, nil
}
