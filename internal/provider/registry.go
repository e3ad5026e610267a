package provider

import (
	"strings"
	"sync"
)

// Factory instantiates a provider. Registered factories are invoked once
// per session that names the identifier; the resulting instance is cached
// on the session, never shared across sessions.
type Factory func() (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds an in-process provider under its full dotted identifier
// (e.g. "sqlhild.example.OneToTen"). Typically called from init.
// Re-registering an identifier replaces the previous factory.
func Register(identifier string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[identifier] = f
}

// lookup finds a registered factory by exact identifier. A bare name with
// no module qualifier also matches by unique last segment, so `OneToTen`
// reaches `sqlhild.example.OneToTen` as long as only one provider ends in
// that symbol.
func lookup(identifier string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if f, ok := registry[identifier]; ok {
		return f, true
	}
	if strings.ContainsAny(identifier, "./") {
		return nil, false
	}
	var found Factory
	matches := 0
	for name, f := range registry {
		if strings.HasSuffix(name, "."+identifier) {
			found = f
			matches++
		}
	}
	if matches == 1 {
		return found, true
	}
	return nil, false
}
