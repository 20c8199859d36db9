package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/shared/telemetry"
)

// Store is the persistence contract for scope rows. Every mutating call
// must be atomic at the storage layer; TryReserve in particular is a
// conditional increment, not a read-then-write.
type Store interface {
	Create(ctx context.Context, projectID string, allowedRevisions int) error
	Get(ctx context.Context, projectID string) (Scope, error)
	// TryReserve atomically increments used and pending while
	// used < allowed. granted is false when the quota is exhausted.
	TryReserve(ctx context.Context, projectID string) (sc Scope, granted bool, err error)
	// MarkUpsellOffered flips upsell_offered false->true. flipped is true
	// only for the call that performed the transition.
	MarkUpsellOffered(ctx context.Context, projectID string) (flipped bool, err error)
	AddAllowed(ctx context.Context, projectID string, n int) (Scope, error)
	// ReleasePending undoes one reservation (used and pending both -1),
	// guarded by pending > 0.
	ReleasePending(ctx context.Context, projectID string) error
	// CommitPending finalizes one reservation (pending -1), guarded by
	// pending > 0.
	CommitPending(ctx context.Context, projectID string) error
}

const authorizeRetries = 3

// Engine gates revision requests against the per-project quota. Authorize is
// the single serialization point: it reserves a unit before returning, so
// concurrent calls can never both consume the last one.
type Engine struct {
	store Store
}

// NewEngine wires an engine over a store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Create makes the scope row for a new project.
func (e *Engine) Create(ctx context.Context, projectID string, allowedRevisions int) error {
	if allowedRevisions <= 0 {
		return fmt.Errorf("scope: allowed revisions must be positive, got %d", allowedRevisions)
	}
	return e.store.Create(ctx, projectID, allowedRevisions)
}

// Get returns the current scope row.
func (e *Engine) Get(ctx context.Context, projectID string) (Scope, error) {
	return e.store.Get(ctx, projectID)
}

// Authorize reserves one revision unit if the quota allows it. When blocked
// it flips the upsell offer on first refusal and reports the offer state.
// Storage conflicts are retried a few times before surfacing ErrConflict.
func (e *Engine) Authorize(ctx context.Context, projectID string) (Decision, error) {
	var lastErr error
	for try := 0; try < authorizeRetries; try++ {
		sc, granted, err := e.store.TryReserve(ctx, projectID)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return Decision{}, err
		}

		if granted {
			telemetry.Info("scope.authorized", map[string]any{
				"project_id": projectID,
				"attempt":    sc.UsedRevisions,
				"remaining":  sc.Remaining(),
			})
			return Decision{Allowed: true, AttemptNumber: sc.UsedRevisions, Scope: sc}, nil
		}

		flipped, err := e.store.MarkUpsellOffered(ctx, projectID)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return Decision{}, err
		}
		sc, err = e.store.Get(ctx, projectID)
		if err != nil {
			return Decision{}, err
		}
		telemetry.Info("scope.blocked", map[string]any{
			"project_id":  projectID,
			"used":        sc.UsedRevisions,
			"allowed":     sc.AllowedRevisions,
			"offered_now": flipped,
		})
		return Decision{UpsellOffered: true, OfferedNow: flipped, Scope: sc}, nil
	}
	return Decision{}, fmt.Errorf("scope authorize for %s: %w", projectID, lastErr)
}

// AcceptUpsell extends the quota by n revisions. Deliberately not
// idempotent: each acceptance buys more capacity.
func (e *Engine) AcceptUpsell(ctx context.Context, projectID string, n int) (Scope, error) {
	if n <= 0 {
		return Scope{}, fmt.Errorf("scope: upsell revisions must be positive, got %d", n)
	}
	sc, err := e.store.AddAllowed(ctx, projectID, n)
	if err != nil {
		return Scope{}, err
	}
	telemetry.Info("scope.upsell_accepted", map[string]any{
		"project_id": projectID,
		"added":      n,
		"allowed":    sc.AllowedRevisions,
	})
	return sc, nil
}

// Release gives back a reserved unit whose batch never dispatched.
func (e *Engine) Release(ctx context.Context, projectID string) error {
	if err := e.store.ReleasePending(ctx, projectID); err != nil {
		return err
	}
	telemetry.Info("scope.released", map[string]any{"project_id": projectID})
	return nil
}

// Commit finalizes a reserved unit after its batch ran, regardless of the
// batch's success.
func (e *Engine) Commit(ctx context.Context, projectID string) error {
	return e.store.CommitPending(ctx, projectID)
}
