package inference

import (
	"context"
	"errors"
	"sync"
	"time"

	"delivery-estimator/internal/artifact"
	apperrors "delivery-estimator/internal/common/errors"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/common/metrics"
	"delivery-estimator/internal/models"

	"golang.org/x/sync/singleflight"
)

const (
	StateUnloaded = "unloaded"
	StateLoaded   = "loaded"
	StateFailed   = "failed"
)

// Meta is descriptive registry data carried by a handle.
type Meta struct {
	DisplayName string
	Kind        string
	Version     string
	Preload     bool
}

// Handle owns one model artifact. Loading happens at most once; a failed
// first load is sticky until Reload succeeds. A failed Reload keeps the
// previously loaded model in service.
type Handle struct {
	name         string
	meta         Meta
	source       artifact.Source
	decode       func([]byte) (*Loaded, error)
	fetchTimeout time.Duration
	log          logger.Logger

	group singleflight.Group

	mu       sync.RWMutex
	loaded   *Loaded
	loadErr  error
	lastErr  error
	loadedAt time.Time
}

type HandleOption func(*Handle)

func WithMeta(m Meta) HandleOption {
	return func(h *Handle) { h.meta = m }
}

func WithFetchTimeout(d time.Duration) HandleOption {
	return func(h *Handle) { h.fetchTimeout = d }
}

// WithDecoder replaces the bundle decoder.
func WithDecoder(fn func([]byte) (*Loaded, error)) HandleOption {
	return func(h *Handle) { h.decode = fn }
}

func WithLogger(l logger.Logger) HandleOption {
	return func(h *Handle) { h.log = l }
}

func NewHandle(name string, src artifact.Source, opts ...HandleOption) *Handle {
	h := &Handle{
		name:   name,
		source: src,
		decode: Decode,
		log:    logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithFields(map[string]interface{}{"model": name})
	return h
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) Meta() Meta { return h.meta }

// Load returns the loaded model, fetching it on first use. Concurrent callers
// share one fetch. The fetch is detached from ctx: a caller that gives up
// returns early but the load still settles for everyone else.
func (h *Handle) Load(ctx context.Context) (*Loaded, error) {
	if l, err, done := h.current(); done {
		return l, err
	}

	ch := h.group.DoChan("load", func() (interface{}, error) {
		if l, err, done := h.current(); done {
			return l, err
		}
		return h.fetchAndStore(context.WithoutCancel(ctx))
	})
	return h.await(ctx, ch)
}

// Reload clears any sticky failure, drops cached artifact bytes and fetches
// the artifact again from its origin.
func (h *Handle) Reload(ctx context.Context) error {
	ch := h.group.DoChan("reload", func() (interface{}, error) {
		h.mu.Lock()
		h.loadErr = nil
		h.mu.Unlock()

		fctx := context.WithoutCancel(ctx)
		artifact.Invalidate(fctx, h.source)
		return h.fetchAndStore(fctx)
	})
	_, err := h.await(ctx, ch)
	return err
}

func (h *Handle) await(ctx context.Context, ch <-chan singleflight.Result) (*Loaded, error) {
	select {
	case <-ctx.Done():
		return nil, apperrors.NewModelUnavailableError(h.name, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Loaded), nil
	}
}

// current reports the settled state: a model, a sticky error, or nothing yet.
func (h *Handle) current() (*Loaded, error, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.loaded != nil {
		return h.loaded, nil, true
	}
	if h.loadErr != nil {
		return nil, h.stickyErr(), true
	}
	return nil, nil, false
}

// stickyErr is the recorded load failure, marked not retryable until Reload.
func (h *Handle) stickyErr() error {
	var se *apperrors.StandardError
	if errors.As(h.loadErr, &se) {
		return se.Permanent(map[string]interface{}{"state": StateFailed})
	}
	return h.loadErr
}

func (h *Handle) fetchAndStore(ctx context.Context) (*Loaded, error) {
	l, err := h.fetch(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err != nil {
		h.lastErr = err
		metrics.ModelLoadsTotal.WithLabelValues(h.name, "error").Inc()
		if h.loaded == nil {
			h.loadErr = err
			metrics.ModelLoaded.WithLabelValues(h.name).Set(0)
			h.log.Error("model load failed", map[string]interface{}{"source": h.source.Describe(), "error": err})
			return nil, err
		}
		h.log.Warn("model reload failed, keeping previous version", map[string]interface{}{
			"source": h.source.Describe(),
			"error":  err,
		})
		return nil, err
	}

	h.loaded = l
	h.loadErr = nil
	h.lastErr = nil
	h.loadedAt = time.Now().UTC()
	metrics.ModelLoadsTotal.WithLabelValues(h.name, "ok").Inc()
	metrics.ModelLoaded.WithLabelValues(h.name).Set(1)
	h.log.Info("model loaded", map[string]interface{}{
		"source":  h.source.Describe(),
		"format":  l.Format,
		"version": l.Schema.Version,
		"bytes":   l.Size,
	})
	return l, nil
}

func (h *Handle) fetch(ctx context.Context) (*Loaded, error) {
	if h.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.fetchTimeout)
		defer cancel()
	}

	data, err := h.source.Fetch(ctx)
	if err != nil {
		return nil, apperrors.NewModelUnavailableError(h.name, err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewModelUnavailableError(h.name, errors.New("artifact is empty"))
	}

	l, err := h.decode(data)
	if err != nil {
		artifact.Invalidate(ctx, h.source)
		return nil, apperrors.NewModelUnavailableError(h.name, err)
	}
	l.Digest = artifact.Digest(data)
	return l, nil
}

// Status reports the handle's state without triggering a load.
func (h *Handle) Status() models.ModelStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := models.ModelStatus{
		Name:        h.name,
		DisplayName: h.meta.DisplayName,
		Kind:        h.meta.Kind,
		Version:     h.meta.Version,
		State:       StateUnloaded,
		Source:      h.source.Describe(),
	}
	if h.loaded != nil {
		st.State = StateLoaded
		st.Version = h.loaded.Schema.Version
		at := h.loadedAt
		st.LoadedAt = &at
	} else if h.loadErr != nil {
		st.State = StateFailed
	}
	if h.lastErr != nil {
		st.LastError = h.lastErr.Error()
	}
	return st
}

// Ready is true once a model is in service.
func (h *Handle) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loaded != nil
}
