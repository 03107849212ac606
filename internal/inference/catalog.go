package inference

import (
	"context"
	"fmt"
	"sort"
	"time"

	"delivery-estimator/internal/artifact"
	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/models"
	"delivery-estimator/pkg/registry"

	"golang.org/x/sync/errgroup"
)

// Catalog holds one handle per registered model.
type Catalog struct {
	handles map[string]*Handle
	log     logger.Logger
}

// NewCatalog builds handles for every registry entry. No artifact is fetched here.
func NewCatalog(reg *registry.ModelRegistry, deps artifact.Deps, fetchTimeout time.Duration, log logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	deps.Logger = log

	c := &Catalog{handles: make(map[string]*Handle), log: log}
	for _, m := range reg.Models {
		src, err := artifact.Open(m.URI, m.SHA256, deps)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		c.handles[m.Name] = NewHandle(m.Name, src,
			WithMeta(Meta{DisplayName: m.DisplayName, Kind: m.Kind, Version: m.Version, Preload: m.Preload}),
			WithFetchTimeout(fetchTimeout),
			WithLogger(log),
		)
	}
	return c, nil
}

// NewCatalogFromHandles wraps prebuilt handles.
func NewCatalogFromHandles(log logger.Logger, handles ...*Handle) *Catalog {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	c := &Catalog{handles: make(map[string]*Handle, len(handles)), log: log}
	for _, h := range handles {
		c.handles[h.Name()] = h
	}
	return c
}

// Get returns the handle for name or a ModelNotFound error.
func (c *Catalog) Get(name string) (*Handle, error) {
	h, ok := c.handles[name]
	if !ok {
		return nil, apperrors.NewModelNotFoundError(name)
	}
	return h, nil
}

// Names returns registered model names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.handles))
	for n := range c.handles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Statuses() []models.ModelStatus {
	out := make([]models.ModelStatus, 0, len(c.handles))
	for _, n := range c.Names() {
		out = append(out, c.handles[n].Status())
	}
	return out
}

// Preload loads every model flagged for preload concurrently. Failures are
// logged and stay sticky on their handle; the first one is returned.
func (c *Catalog) Preload(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	errs := make([]error, len(c.handles))
	for i, n := range c.Names() {
		h := c.handles[n]
		if !h.Meta().Preload {
			continue
		}
		i := i
		g.Go(func() error {
			if _, err := h.Load(gctx); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Ready is true when every preload model is in service.
func (c *Catalog) Ready() bool {
	for _, h := range c.handles {
		if h.Meta().Preload && !h.Ready() {
			return false
		}
	}
	return true
}
