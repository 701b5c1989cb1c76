package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/usecases/wallet"
)

const (
	leaseSweepInterval       = 30 * time.Second
	reservationSweepInterval = time.Minute
)

// LeaseSweeper returns tasks whose worker died mid-settlement to the queue.
type LeaseSweeper struct {
	tasks  ports.TaskRepository
	logger *slog.Logger
}

// NewLeaseSweeper creates a LeaseSweeper.
func NewLeaseSweeper(tasks ports.TaskRepository, logger *slog.Logger) *LeaseSweeper {
	return &LeaseSweeper{tasks: tasks, logger: logger}
}

// Run sweeps expired leases until the context is cancelled.
func (s *LeaseSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(leaseSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := s.tasks.ReleaseExpiredLeases(ctx, time.Now())
			if err != nil {
				s.logger.ErrorContext(ctx, "lease sweep failed", "error", err)
				continue
			}
			if released > 0 {
				s.logger.WarnContext(ctx, "expired task leases returned to queue", "count", released)
			}
		}
	}
}

// ReservationSweeper releases HELD reservations that never reached
// settlement. Covers the crash window between vend success and task enqueue,
// and the abort path failing after a hold was placed.
type ReservationSweeper struct {
	release *wallet.ReleaseStaleReservationsUseCase
	logger  *slog.Logger
}

// NewReservationSweeper creates a ReservationSweeper.
func NewReservationSweeper(release *wallet.ReleaseStaleReservationsUseCase, logger *slog.Logger) *ReservationSweeper {
	return &ReservationSweeper{release: release, logger: logger}
}

// Run sweeps stale reservations until the context is cancelled.
func (s *ReservationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(reservationSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := s.release.Execute(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "reservation sweep failed", "error", err)
				continue
			}
			if released > 0 {
				s.logger.WarnContext(ctx, "stale reservations released", "count", released)
			}
		}
	}
}
