package jobs

import (
	"context"
	"fmt"
	"log"
)

// SessionSweeperService defines the interface for deleting expired sessions
type SessionSweeperService interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SessionSweeper removes expired sessions on each worker tick
type SessionSweeper struct {
	auth SessionSweeperService
}

// NewSessionSweeper creates a new SessionSweeper instance
func NewSessionSweeper(auth SessionSweeperService) *SessionSweeper {
	return &SessionSweeper{auth: auth}
}

// ProcessJobs implements the JobProcessor interface
func (s *SessionSweeper) ProcessJobs(ctx context.Context) error {
	deleted, err := s.auth.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	if deleted > 0 {
		log.Printf("Swept %d expired sessions", deleted)
	}
	return nil
}
