package connector

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const DefaultRequestTimeout = 30 * time.Second

// Descriptor binds a provider adapter to the endpoint and app-level OAuth
// client configuration the token lifecycle manager needs. Everything is
// injected explicitly at wiring time; nothing reads process-wide state.
type Descriptor struct {
	Key      string
	Strategy AuthStrategy
	Adapter  Adapter

	// TokenURL is the OAuth token endpoint for the two OAuth strategies.
	TokenURL string
	// LoginURL is the authentication endpoint for session providers.
	LoginURL string
	// ClientID/ClientSecret identify our OAuth app at authorization-code
	// providers. Client-credentials providers carry tenant-supplied ids in
	// the credential blob instead.
	ClientID     string
	ClientSecret string

	Timeout time.Duration
}

// RequestTimeout returns the provider call timeout, defaulted.
func (d Descriptor) RequestTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultRequestTimeout
}

// Registry holds the provider descriptors the scheduler can dispatch to,
// keyed by catalog key.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds a provider descriptor. Registering the same key twice or a
// descriptor without an adapter is a wiring bug.
func (r *Registry) Register(d Descriptor) error {
	if d.Key == "" || d.Adapter == nil {
		return fmt.Errorf("registry: descriptor for %q is incomplete", d.Key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Key]; exists {
		return fmt.Errorf("registry: provider %q already registered", d.Key)
	}
	r.descriptors[d.Key] = d
	return nil
}

// MustRegister is Register for static wiring in main.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup resolves a provider key to its descriptor.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[key]
	return d, ok
}

// Keys lists registered provider keys in stable order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
