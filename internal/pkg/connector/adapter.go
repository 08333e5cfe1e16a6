package connector

import (
	"context"
	"time"
)

// AuthStrategy is the closed set of credential schemes the token lifecycle
// manager knows how to keep valid. Values match the strings persisted on
// integration definitions.
type AuthStrategy string

const (
	StrategyClientCredentials AuthStrategy = "client_credentials"
	StrategyAuthorizationCode AuthStrategy = "authorization_code"
	StrategySession           AuthStrategy = "session"
	StrategyAPIKey            AuthStrategy = "api_key"
)

// EntityKind names one canonical record type a provider can supply.
type EntityKind string

const (
	KindVehicle         EntityKind = "vehicle"
	KindDriver          EntityKind = "driver"
	KindFuelTransaction EntityKind = "fuel_transaction"
)

// Item is the uniform shape of one externally fetched entity after the
// adapter has mapped the provider payload. NaturalKey is empty for kinds
// without one (fuel transactions).
type Item struct {
	Kind       EntityKind
	ExternalID string
	NaturalKey string
	Fields     map[string]any
}

// Page is one fetched page in the provider-neutral paging shape. Done marks
// the last page; Raw keeps the unparsed response body for the payload
// archive.
type Page struct {
	Items      []Item
	NextCursor string
	Done       bool
	Raw        []byte
}

// Access is the opaque short-lived valid credential handle handed to
// adapters. Only the token lifecycle manager produces one; adapters never
// read or write stored credentials themselves.
type Access struct {
	Strategy  AuthStrategy
	Token     string
	Server    string
	Database  string
	ExpiresAt time.Time
}

// Adapter wraps one provider's REST surface as typed, stateless page
// fetches. Adapters translate the provider's paging convention
// (offset/limit, page number or cursor token) into the Page shape and
// classify provider failures into the connector error taxonomy.
type Adapter interface {
	Key() string
	Strategy() AuthStrategy
	Kinds() []EntityKind
	FetchPage(ctx context.Context, access Access, kind EntityKind, cursor string) (Page, error)
}
