package templates

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/resume-renderer/internal/observability"
	"github.com/jonathan/resume-renderer/internal/types"
)

// DefaultListLimit is used when a caller passes a non-positive limit
const DefaultListLimit = 50

// Catalog merges template descriptors from ordered sources. Earlier sources
// win on id conflicts. Descriptors are merged once and served from memory
// until Refresh is called.
type Catalog struct {
	sources      []*Source
	logger       *zap.Logger
	defaultLimit int

	mu      sync.RWMutex
	loaded  bool
	entries map[string]types.TemplateMetadata
	sorted  []types.TemplateMetadata
}

// CatalogOption configures a Catalog
type CatalogOption func(*Catalog)

// WithDefaultLimit sets the limit applied when List is called with limit <= 0
func WithDefaultLimit(limit int) CatalogOption {
	return func(c *Catalog) {
		if limit > 0 {
			c.defaultLimit = limit
		}
	}
}

// NewCatalog creates a catalog over sources, highest priority first.
func NewCatalog(sources []*Source, logger *zap.Logger, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		sources:      sources,
		logger:       observability.OrNop(logger),
		defaultLimit: DefaultListLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the catalog's sources in priority order
func (c *Catalog) Sources() []*Source {
	return c.sources
}

// Refresh discards the merged view and reloads every source.
func (c *Catalog) Refresh(ctx context.Context) error {
	entries, err := c.merge(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.setEntries(entries)
	c.mu.Unlock()
	return nil
}

// FindByID returns the descriptor with the given id or ErrTemplateNotFound.
func (c *Catalog) FindByID(ctx context.Context, id string) (types.TemplateMetadata, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return types.TemplateMetadata{}, err
	}

	c.mu.RLock()
	meta, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return types.TemplateMetadata{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, id)
	}
	return meta, nil
}

// List returns up to limit descriptors sorted by name then id.
func (c *Catalog) List(ctx context.Context, limit int) ([]types.TemplateMetadata, error) {
	return c.list(ctx, limit, func(types.TemplateMetadata) bool { return true })
}

// ListAccessible returns up to limit descriptors the given tier may use.
func (c *Catalog) ListAccessible(ctx context.Context, tier types.Tier, limit int) ([]types.TemplateMetadata, error) {
	return c.list(ctx, limit, func(m types.TemplateMetadata) bool { return m.IsAccessibleBy(tier) })
}

func (c *Catalog) list(ctx context.Context, limit int, keep func(types.TemplateMetadata) bool) ([]types.TemplateMetadata, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = c.defaultLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]types.TemplateMetadata, 0, min(limit, len(c.sorted)))
	for _, meta := range c.sorted {
		if len(result) == limit {
			break
		}
		if keep(meta) {
			result = append(result, meta)
		}
	}
	return result, nil
}

func (c *Catalog) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	entries, err := c.merge(ctx)
	if err != nil {
		return err
	}
	c.setEntries(entries)
	return nil
}

// merge walks sources from lowest to highest priority so that earlier
// sources overwrite later ones.
func (c *Catalog) merge(ctx context.Context) (map[string]types.TemplateMetadata, error) {
	entries := make(map[string]types.TemplateMetadata)
	for i := len(c.sources) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src := c.sources[i]
		descriptors, err := loadDescriptors(src, c.logger)
		if err != nil {
			return nil, fmt.Errorf("loading descriptors from %s: %w", src, err)
		}
		for _, meta := range descriptors {
			if prev, ok := entries[meta.ID]; ok {
				c.logger.Info("template overridden by higher-priority source",
					zap.String("template_id", meta.ID),
					zap.String("source", meta.Source),
					zap.String("overridden_source", prev.Source))
			}
			entries[meta.ID] = meta
		}
	}

	c.logger.Debug("template catalog loaded",
		zap.Int("templates", len(entries)),
		zap.Int("sources", len(c.sources)))
	return entries, nil
}

// setEntries must be called with mu held for writing
func (c *Catalog) setEntries(entries map[string]types.TemplateMetadata) {
	sorted := make([]types.TemplateMetadata, 0, len(entries))
	for _, meta := range entries {
		sorted = append(sorted, meta)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	c.entries = entries
	c.sorted = sorted
	c.loaded = true
}
