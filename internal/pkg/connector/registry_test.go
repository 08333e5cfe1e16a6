package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ key string }

func (a *stubAdapter) Key() string            { return a.key }
func (a *stubAdapter) Strategy() AuthStrategy { return StrategyAPIKey }
func (a *stubAdapter) Kinds() []EntityKind    { return []EntityKind{KindVehicle} }
func (a *stubAdapter) FetchPage(ctx context.Context, access Access, kind EntityKind, cursor string) (Page, error) {
	return Page{Done: true}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Key: "acme", Strategy: StrategyAPIKey, Adapter: &stubAdapter{key: "acme"}}))

	d, ok := r.Lookup("acme")
	require.True(t, ok)
	assert.Equal(t, "acme", d.Key)

	_, ok = r.Lookup("unknown")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicatesAndIncomplete(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Key: "acme", Adapter: &stubAdapter{key: "acme"}}))

	assert.Error(t, r.Register(Descriptor{Key: "acme", Adapter: &stubAdapter{key: "acme"}}))
	assert.Error(t, r.Register(Descriptor{Key: "", Adapter: &stubAdapter{}}))
	assert.Error(t, r.Register(Descriptor{Key: "noadapter"}))
}

func TestRegistryKeysSorted(t *testing.T) {
	r := NewRegistry()
	for _, k := range []string{"zeta", "acme", "mid"} {
		require.NoError(t, r.Register(Descriptor{Key: k, Adapter: &stubAdapter{key: k}}))
	}
	assert.Equal(t, []string{"acme", "mid", "zeta"}, r.Keys())
}

func TestDescriptorRequestTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultRequestTimeout, Descriptor{}.RequestTimeout())
	assert.Equal(t, 5*time.Second, Descriptor{Timeout: 5 * time.Second}.RequestTimeout())
}
