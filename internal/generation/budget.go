package generation

import (
	"sync"
	"time"
)

const defaultBudgetThreshold = 0.70

// BudgetConfig sets the rolling-window limits the budget paces against.
// Threshold scales both limits down so bursts stay clear of the provider's
// hard ceiling; zero means the 0.70 default.
type BudgetConfig struct {
	RequestLimit int
	TokenLimit   int
	Threshold    float64
	Window       time.Duration
	Now          func() time.Time
}

// Budget paces generation calls against a provider rate window. It tracks
// requests and estimated tokens per fixed window and refuses reservations
// that would push either past the threshold-scaled limit. All state lives
// behind one mutex; there is no I/O.
type Budget struct {
	mu           sync.Mutex
	requestLimit int
	tokenLimit   int
	threshold    float64
	window       time.Duration
	now          func() time.Time

	windowStart time.Time
	requests    int
	tokens      int
}

// NewBudget constructs a budget. One instance is shared by all workers of a
// scheduler; construct it in bootstrap and pass it down.
func NewBudget(cfg BudgetConfig) *Budget {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = defaultBudgetThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Budget{
		requestLimit: cfg.RequestLimit,
		tokenLimit:   cfg.TokenLimit,
		threshold:    cfg.Threshold,
		window:       cfg.Window,
		now:          cfg.Now,
	}
	b.windowStart = b.now()
	return b
}

// Reservation is a granted slice of the current window. Exactly one Commit
// should follow each reservation; extra commits are ignored.
type Reservation struct {
	budget      *Budget
	estimated   int
	windowStart time.Time
	committed   bool
}

// TryReserve asks for capacity for one call estimated at estimatedTokens.
// On success it returns the reservation and a zero wait. When the window is
// saturated it returns nil and the time until the window resets.
func (b *Budget) TryReserve(estimatedTokens int) (*Reservation, time.Duration) {
	if estimatedTokens < 0 {
		estimatedTokens = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.roll(now)

	if !b.fits(estimatedTokens) {
		// An oversized estimate in an empty window would never fit; let it
		// through so the batch can make progress, and let actuals saturate
		// the window afterwards.
		if b.requests > 0 {
			return nil, b.windowStart.Add(b.window).Sub(now)
		}
	}

	b.requests++
	b.tokens += estimatedTokens
	return &Reservation{
		budget:      b,
		estimated:   estimatedTokens,
		windowStart: b.windowStart,
	}, 0
}

// Commit replaces the reservation's estimate with the call's actual token
// usage. If the window rolled while the call ran, actuals are charged to the
// current window; counters never go negative.
func (r *Reservation) Commit(actualTokens int) {
	if r == nil || r.budget == nil {
		return
	}
	if actualTokens < 0 {
		actualTokens = 0
	}

	b := r.budget
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.committed {
		return
	}
	r.committed = true

	b.roll(b.now())

	if b.windowStart.Equal(r.windowStart) {
		b.tokens += actualTokens - r.estimated
	} else {
		b.tokens += actualTokens
	}
	if b.tokens < 0 {
		b.tokens = 0
	}
}

// Snapshot reports current window usage for logging and the scope endpoint.
func (b *Budget) Snapshot() (requests, tokens int, resetIn time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.roll(now)
	return b.requests, b.tokens, b.windowStart.Add(b.window).Sub(now)
}

// fits reports whether one more request at the given estimate stays within
// the threshold-scaled limits. Callers hold b.mu.
func (b *Budget) fits(estimatedTokens int) bool {
	if b.requestLimit > 0 {
		if float64(b.requests+1) > b.threshold*float64(b.requestLimit) {
			return false
		}
	}
	if b.tokenLimit > 0 {
		if float64(b.tokens+estimatedTokens) > b.threshold*float64(b.tokenLimit) {
			return false
		}
	}
	return true
}

// roll advances the window so now falls inside it. Callers hold b.mu.
func (b *Budget) roll(now time.Time) {
	if b.window <= 0 {
		return
	}
	elapsed := now.Sub(b.windowStart)
	if elapsed < b.window {
		return
	}
	steps := elapsed / b.window
	b.windowStart = b.windowStart.Add(steps * b.window)
	b.requests = 0
	b.tokens = 0
}
