package scope

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps scope rows behind one mutex. Used in dev mode without
// Postgres and in tests; the mutex gives the same serialization the pg
// store gets from conditional updates.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Scope
	now  func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Scope), now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, projectID string, allowedRevisions int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[projectID]; ok {
		return nil
	}
	s.rows[projectID] = Scope{
		ProjectID:        projectID,
		AllowedRevisions: allowedRevisions,
		UpdatedAt:        s.now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, projectID string) (Scope, error) {
	if err := ctx.Err(); err != nil {
		return Scope{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[projectID]
	if !ok {
		return Scope{}, ErrNotFound
	}
	return sc, nil
}

func (s *MemoryStore) TryReserve(ctx context.Context, projectID string) (Scope, bool, error) {
	if err := ctx.Err(); err != nil {
		return Scope{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[projectID]
	if !ok {
		return Scope{}, false, ErrNotFound
	}
	if sc.UsedRevisions >= sc.AllowedRevisions {
		return sc, false, nil
	}
	sc.UsedRevisions++
	sc.PendingRevisions++
	sc.UpdatedAt = s.now().UTC()
	s.rows[projectID] = sc
	return sc, true, nil
}

func (s *MemoryStore) MarkUpsellOffered(ctx context.Context, projectID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[projectID]
	if !ok {
		return false, ErrNotFound
	}
	if sc.UpsellOffered {
		return false, nil
	}
	sc.UpsellOffered = true
	sc.UpdatedAt = s.now().UTC()
	s.rows[projectID] = sc
	return true, nil
}

func (s *MemoryStore) AddAllowed(ctx context.Context, projectID string, n int) (Scope, error) {
	if err := ctx.Err(); err != nil {
		return Scope{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[projectID]
	if !ok {
		return Scope{}, ErrNotFound
	}
	sc.AllowedRevisions += n
	sc.UpsellAccepted = true
	sc.UpdatedAt = s.now().UTC()
	s.rows[projectID] = sc
	return sc, nil
}

func (s *MemoryStore) ReleasePending(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[projectID]
	if !ok {
		return ErrNotFound
	}
	if sc.PendingRevisions <= 0 {
		return ErrNoPending
	}
	sc.PendingRevisions--
	sc.UsedRevisions--
	sc.UpdatedAt = s.now().UTC()
	s.rows[projectID] = sc
	return nil
}

func (s *MemoryStore) CommitPending(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.rows[projectID]
	if !ok {
		return ErrNotFound
	}
	if sc.PendingRevisions <= 0 {
		return ErrNoPending
	}
	sc.PendingRevisions--
	sc.UpdatedAt = s.now().UTC()
	s.rows[projectID] = sc
	return nil
}

var _ Store = (*MemoryStore)(nil)
