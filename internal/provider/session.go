package provider

import "sync"

// Session caches resolved handles for one client session (a CLI invocation
// or one server connection). Same identifier string, same handle, for the
// session's lifetime. Sessions are never shared between connections: two
// sessions naming the same identifier each own an independent provider
// instance.
type Session struct {
	resolver *Resolver

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewSession creates an empty session over the resolver.
func NewSession(r *Resolver) *Session {
	return &Session{resolver: r, handles: map[string]*Handle{}}
}

// Resolve returns the cached handle for the identifier, resolving and
// caching it on first use. Failed resolutions are not cached: a provider
// module may appear on the search path between queries.
func (s *Session) Resolve(identifier string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[identifier]; ok {
		return h, nil
	}
	h, err := s.resolver.Resolve(identifier)
	if err != nil {
		return nil, err
	}
	s.handles[identifier] = h
	return h, nil
}
