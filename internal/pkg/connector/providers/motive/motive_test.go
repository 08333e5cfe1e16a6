package motive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckwise/truckwise/internal/pkg/connector"
)

func testAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	desc := NewDescriptor(Config{BaseURL: srv.URL})
	return desc.Adapter.(*Adapter), srv.Close
}

func TestFetchPageVehicles(t *testing.T) {
	adapter, closeFn := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/vehicles", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		fmt.Fprint(w, `{
			"vehicles": [
				{"id": 101, "vin": "1FUJA6CK14LM12345", "number": "T-42", "make": "Freightliner", "model": "Cascadia", "year": 2022, "status": "active"},
				{"id": 102, "vin": "", "number": "T-43", "make": "Kenworth", "model": "T680", "year": 2021, "status": "active"}
			],
			"pagination": {"next_cursor": "abc123"}
		}`)
	})
	defer closeFn()

	page, err := adapter.FetchPage(context.Background(), connector.Access{Token: "tok-1"}, connector.KindVehicle, "")
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, "101", page.Items[0].ExternalID)
	assert.Equal(t, "1FUJA6CK14LM12345", page.Items[0].NaturalKey)
	assert.Equal(t, "T-42", page.Items[0].Fields["unit_number"])
	// A vehicle without a VIN has no natural key and matches by external id only.
	assert.Empty(t, page.Items[1].NaturalKey)

	assert.False(t, page.Done)
	assert.Equal(t, "abc123", page.NextCursor)
	assert.NotEmpty(t, page.Raw)
}

func TestFetchPageCursorAndLastPage(t *testing.T) {
	adapter, closeFn := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("page_cursor"))
		fmt.Fprint(w, `{"vehicles": [], "pagination": {"next_cursor": ""}}`)
	})
	defer closeFn()

	page, err := adapter.FetchPage(context.Background(), connector.Access{Token: "tok-1"}, connector.KindVehicle, "abc123")
	require.NoError(t, err)
	assert.True(t, page.Done)
	assert.Empty(t, page.NextCursor)
}

func TestFetchPageDriversLowercasesEmails(t *testing.T) {
	adapter, closeFn := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/drivers", r.URL.Path)
		fmt.Fprint(w, `{
			"drivers": [{"id": 7, "email": "Jane.Doe@Acme.TEST", "first_name": "Jane", "last_name": "Doe"}],
			"pagination": {"next_cursor": ""}
		}`)
	})
	defer closeFn()

	page, err := adapter.FetchPage(context.Background(), connector.Access{Token: "tok-1"}, connector.KindDriver, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "jane.doe@acme.test", page.Items[0].NaturalKey)
	assert.Equal(t, "jane.doe@acme.test", page.Items[0].Fields["email"])
}

func TestFetchPageStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		terminal  bool
		transient bool
	}{
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"forbidden", http.StatusForbidden, true, false},
		{"rate limited", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusBadGateway, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, closeFn := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "30")
				}
				w.WriteHeader(tt.status)
			})
			defer closeFn()

			_, err := adapter.FetchPage(context.Background(), connector.Access{Token: "tok-1"}, connector.KindVehicle, "")
			require.Error(t, err)
			assert.Equal(t, tt.terminal, connector.IsTerminal(err))
			assert.Equal(t, tt.transient, connector.IsTransient(err))
		})
	}
}

func TestFetchPageRateLimitCarriesRetryAfter(t *testing.T) {
	adapter, closeFn := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	defer closeFn()

	_, err := adapter.FetchPage(context.Background(), connector.Access{Token: "tok-1"}, connector.KindVehicle, "")

	var limited *connector.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, float64(30), limited.RetryAfter.Seconds())
}

func TestFetchPageUnknownKind(t *testing.T) {
	adapter, closeFn := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	defer closeFn()

	_, err := adapter.FetchPage(context.Background(), connector.Access{Token: "tok-1"}, connector.EntityKind("trailer"), "")
	require.Error(t, err)
}
