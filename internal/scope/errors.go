package scope

import "errors"

// ErrNotFound indicates no scope row exists for the project.
var ErrNotFound = errors.New("revision scope not found")

// ErrConflict indicates the storage layer lost a concurrent-update race.
// The engine retries these a bounded number of times; callers seeing one
// should tell the user to try again.
var ErrConflict = errors.New("revision scope conflict")

// ErrNoPending indicates a Release or Commit with no outstanding reservation.
var ErrNoPending = errors.New("no pending revision reservation")
