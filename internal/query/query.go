// Package query is the front door: it ties the parser, planner, and
// executor together behind per-session state. Both the CLI and the wire
// server speak to a Session and nothing below it.
package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sqlhild/internal/engine"
	"sqlhild/internal/plan"
	"sqlhild/internal/provider"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// Engine owns the shared, session-independent pieces: the resolver and the
// logger. It is safe for concurrent use; per-connection state lives in the
// Sessions it mints.
type Engine struct {
	resolver *provider.Resolver
	logger   *slog.Logger
}

// New builds an engine. loader may be nil (registry-only resolution);
// logger may be nil.
func New(loader provider.Loader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{resolver: provider.NewResolver(loader, logger), logger: logger}
}

// NewSession mints an isolated session. Provider handles resolved by one
// session are never visible to another.
func (e *Engine) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		providers: provider.NewSession(e.resolver),
		params:    map[string]string{},
		logger:    e.logger.With("session", id),
	}
}

// Session is one client's query context: a provider handle cache plus the
// session parameters accepted from SET statements and startup packets.
type Session struct {
	id        string
	providers *provider.Session

	mu     sync.Mutex
	params map[string]string

	logger *slog.Logger
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// SetParameter records a session parameter. Parameters are accepted and
// stored but do not influence execution.
func (s *Session) SetParameter(name, val string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[strings.ToLower(name)] = val
}

// Parameter reads a session parameter.
func (s *Session) Parameter(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[strings.ToLower(name)]
	return v, ok
}

// Result is an executed query: the output schema plus a live row iterator.
// The caller must drain or Close the iterator; errors can surface on any
// Next, not just the first.
type Result struct {
	Schema value.Schema
	Rows   provider.RowIter
}

// Close releases the underlying iterator.
func (r *Result) Close() error { return r.Rows.Close() }

// Query parses, plans, and starts executing one SELECT. Rows are produced
// lazily as the result iterator is pulled.
func (s *Session) Query(ctx context.Context, sqlText string) (*Result, error) {
	start := time.Now()
	stmt, err := sql.Parse(sqlText)
	if err != nil {
		return nil, err
	}
	p, err := plan.Build(stmt, s.providers)
	if err != nil {
		return nil, err
	}
	rows, err := engine.Execute(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query started", "elapsed", time.Since(start))
	return &Result{Schema: p.Schema(), Rows: rows}, nil
}
