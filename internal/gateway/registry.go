package gateway

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownGateway = errors.New("unknown gateway")

// Registry maps gateway names to their adapters.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// NewDefaultRegistry returns a registry holding every built-in adapter.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPagarme())
	r.Register(NewHotmart())
	r.Register(NewKiwify())
	return r
}

// Register adds an adapter. Panics on duplicate names to surface misconfiguration early.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(a.Name())
	if _, exists := r.adapters[name]; exists {
		panic(fmt.Sprintf("gateway registry: duplicate adapter %q", name))
	}
	r.adapters[name] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return a, nil
}

// Names returns the registered gateway names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
