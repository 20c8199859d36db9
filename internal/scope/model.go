package scope

import "time"

// Scope is the per-project revision quota row. UsedRevisions counts every
// reserved unit, including reservations whose batch has not finished yet;
// PendingRevisions tracks that reserved-but-uncommitted subset so Release
// can never dip below genuinely completed revisions.
type Scope struct {
	ProjectID        string    `json:"projectId"`
	AllowedRevisions int       `json:"allowedRevisions"`
	UsedRevisions    int       `json:"usedRevisions"`
	PendingRevisions int       `json:"-"`
	UpsellOffered    bool      `json:"upsellOffered"`
	UpsellAccepted   bool      `json:"upsellAccepted"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Remaining is derived, never stored.
func (s Scope) Remaining() int {
	r := s.AllowedRevisions - s.UsedRevisions
	if r < 0 {
		return 0
	}
	return r
}

// Decision is the outcome of Authorize. A blocked decision is not an error;
// it carries the upsell state for the caller to present.
type Decision struct {
	Allowed bool

	// Set when Allowed: 1-based ordinal of this revision, equal to
	// used_revisions after the reserving increment.
	AttemptNumber int

	// Set when blocked.
	UpsellOffered bool
	// True when this very call flipped upsell_offered, so the caller knows
	// to surface the offer rather than repeat it.
	OfferedNow bool

	Scope Scope
}
