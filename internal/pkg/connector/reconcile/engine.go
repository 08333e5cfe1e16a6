package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/truckwise/truckwise/internal/pkg/connector"
)

// ExternalIDKey returns the metadata map key under which a provider's
// external id is stored on a canonical entity.
func ExternalIDKey(providerKey string) string {
	return "ext:" + providerKey
}

// Match is a matched canonical entity: its primary key and current metadata
// map, which the engine merges rather than replaces.
type Match struct {
	ID       uint
	Metadata map[string]any
}

// Store is the canonical-entity persistence surface the engine runs
// against. Lookups return nil without error when nothing matches.
type Store interface {
	FindByNaturalKey(ctx context.Context, tenantID uint, kind connector.EntityKind, naturalKey string) (*Match, error)
	FindByExternalID(ctx context.Context, tenantID uint, kind connector.EntityKind, providerKey, externalID string) (*Match, error)
	Create(ctx context.Context, tenantID uint, item connector.Item, metadata map[string]any) error
	Update(ctx context.Context, tenantID uint, kind connector.EntityKind, id uint, item connector.Item, metadata map[string]any) error
}

// Result summarizes one reconciled batch.
type Result struct {
	Created int
	Updated int
	Errors  []*connector.ItemError
}

// Engine maps pages of externally fetched items onto canonical records with
// a deterministic match-then-merge pass. Re-running with an unchanged item
// set produces zero net changes.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Reconcile applies one batch in the order received. Matching per item:
// natural key first, then stored external id, else create. Item failures are
// collected and never abort the rest of the batch.
func (e *Engine) Reconcile(ctx context.Context, tenantID uint, providerKey string, items []connector.Item) Result {
	var res Result
	for _, item := range items {
		if err := e.reconcileItem(ctx, tenantID, providerKey, item, &res); err != nil {
			itemErr := &connector.ItemError{ExternalID: item.ExternalID, Err: err}
			res.Errors = append(res.Errors, itemErr)
			log.Warnf("[Reconcile] Tenant %d %s %s: %v", tenantID, providerKey, item.Kind, itemErr)
		}
	}
	return res
}

func (e *Engine) reconcileItem(ctx context.Context, tenantID uint, providerKey string, item connector.Item, res *Result) error {
	if item.ExternalID == "" {
		return errors.New("missing external id")
	}
	if item.Kind == "" {
		return errors.New("missing entity kind")
	}

	match, err := e.findMatch(ctx, tenantID, providerKey, item)
	if err != nil {
		return err
	}

	if match == nil {
		meta := map[string]any{ExternalIDKey(providerKey): item.ExternalID}
		if err := e.store.Create(ctx, tenantID, item, meta); err != nil {
			return fmt.Errorf("create: %w", err)
		}
		res.Created++
		return nil
	}

	// Merge, not replace: fields written by other sync paths or manual
	// edits survive unless this provider re-supplies them.
	meta := make(map[string]any, len(match.Metadata)+1)
	for k, v := range match.Metadata {
		meta[k] = v
	}
	meta[ExternalIDKey(providerKey)] = item.ExternalID

	if err := e.store.Update(ctx, tenantID, item.Kind, match.ID, item, meta); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	res.Updated++
	return nil
}

// findMatch applies the match order: a natural-key hit always wins over an
// external-id hit.
func (e *Engine) findMatch(ctx context.Context, tenantID uint, providerKey string, item connector.Item) (*Match, error) {
	if item.NaturalKey != "" {
		match, err := e.store.FindByNaturalKey(ctx, tenantID, item.Kind, item.NaturalKey)
		if err != nil {
			return nil, fmt.Errorf("natural key lookup: %w", err)
		}
		if match != nil {
			return match, nil
		}
	}

	match, err := e.store.FindByExternalID(ctx, tenantID, item.Kind, providerKey, item.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("external id lookup: %w", err)
	}
	return match, nil
}
