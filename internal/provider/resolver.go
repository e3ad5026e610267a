package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sqlhild/internal/domain"
	"sqlhild/internal/value"
)

// ErrNotFound is returned by loaders when an identifier does not map to any
// loadable module. The resolver wraps it in a ResolutionError.
var ErrNotFound = errors.New("table provider not found")

// Loader is the external module-loading collaborator: it turns an
// identifier string into a unit satisfying the Provider contract, or fails.
// How modules are located and executed is entirely its concern.
type Loader interface {
	Load(identifier string) (Provider, error)
}

// Handle is the lazily-instantiated binding between an identifier and a
// loaded provider: schema already validated, rows on demand. Handles are
// owned by the session that resolved them.
type Handle struct {
	Identifier string
	provider   Provider
	schema     value.Schema
}

func newHandle(identifier string, p Provider) (*Handle, error) {
	schema, err := p.Schema()
	if err != nil {
		return nil, domain.ErrResolutionf(identifier, "provider schema: %v", err)
	}
	if len(schema) == 0 {
		return nil, domain.ErrResolutionf(identifier, "provider exposes no columns")
	}
	seen := map[string]bool{}
	for _, c := range schema {
		if seen[c.Name] {
			return nil, domain.ErrResolutionf(identifier, "duplicate column %q in provider schema", c.Name)
		}
		seen[c.Name] = true
	}
	return &Handle{Identifier: identifier, provider: p, schema: schema}, nil
}

// Schema returns the provider's validated schema.
func (h *Handle) Schema() value.Schema { return h.schema }

// Scan starts an independent row sequence.
func (h *Handle) Scan(ctx context.Context, pd Pushdown) (RowIter, error) {
	it, err := h.provider.Scan(ctx, pd)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", h.Identifier, err)
	}
	return it, nil
}

// Resolver maps identifiers to provider handles: first the in-process
// registry, then the external loader. Resolution is stateless; the
// per-session cache lives in Session, not here.
type Resolver struct {
	loader Loader
	logger *slog.Logger
}

// NewResolver builds a resolver. loader may be nil, restricting resolution
// to registered providers.
func NewResolver(loader Loader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{loader: loader, logger: logger}
}

// Resolve instantiates a provider for the identifier and validates it
// against the contract.
func (r *Resolver) Resolve(identifier string) (*Handle, error) {
	if f, ok := lookup(identifier); ok {
		p, err := f()
		if err != nil {
			return nil, domain.ErrResolution(identifier, err)
		}
		return newHandle(identifier, p)
	}

	if r.loader == nil {
		return nil, domain.ErrResolutionf(identifier, "no such table provider")
	}

	r.logger.Debug("loading table provider", "identifier", identifier)
	p, err := r.loader.Load(identifier)
	if err != nil {
		return nil, domain.ErrResolution(identifier, err)
	}
	return newHandle(identifier, p)
}
