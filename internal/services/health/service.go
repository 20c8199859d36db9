package health

import (
	"context"
	"database/sql"
	"time"
)

// Service encapsulates health-related checks.
type Service struct {
	DB              *sql.DB
	QueueConfigured bool
}

// NewService constructs a new health service.
func NewService(db *sql.DB, queueConfigured bool) *Service {
	return &Service{DB: db, QueueConfigured: queueConfigured}
}

// Status returns the health payload. The db field is "memory" when running
// without Postgres, "ok" when reachable, and "down" when the ping fails.
func (s *Service) Status(ctx context.Context) map[string]any {
	dbStatus := "memory"
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = "ok"
		}
	}

	return map[string]any{
		"ok":    dbStatus != "down",
		"db":    dbStatus,
		"queue": s.QueueConfigured,
	}
}
