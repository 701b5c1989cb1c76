// Package worker runs the background loops of the worker process: the
// settlement pool that drains the task queue, the lease sweeper that rescues
// tasks from crashed workers, and the reservation sweeper that releases
// abandoned holds.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/usecases/purchase"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
)

const (
	// taskLease is how long a claimed task belongs to one worker. A worker
	// that dies mid-settlement loses the task to the lease sweeper after
	// this long.
	taskLease = 30 * time.Second

	// idleWait is the pause after finding the queue empty.
	idleWait = time.Second
)

// SettlementPool runs N workers against the settlement task queue. Claiming
// uses FOR UPDATE SKIP LOCKED, so workers never collide on a task.
type SettlementPool struct {
	tasks   ports.TaskRepository
	settler *purchase.SettleTransactionUseCase
	logger  *slog.Logger
	size    int
}

// NewSettlementPool creates a pool of size workers.
func NewSettlementPool(
	tasks ports.TaskRepository,
	settler *purchase.SettleTransactionUseCase,
	size int,
	logger *slog.Logger,
) *SettlementPool {
	if size < 1 {
		size = 1
	}
	return &SettlementPool{
		tasks:   tasks,
		settler: settler,
		logger:  logger,
		size:    size,
	}
}

// Run starts the workers and blocks until the context is cancelled and all
// workers have drained their current task.
func (p *SettlementPool) Run(ctx context.Context) {
	p.logger.InfoContext(ctx, "settlement pool started", "workers", p.size)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
	p.logger.Info("settlement pool stopped")
}

func (p *SettlementPool) workerLoop(ctx context.Context, id int) {
	logger := p.logger.With("worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.tasks.ClaimNext(ctx, time.Now(), taskLease)
		if err != nil {
			logger.ErrorContext(ctx, "task claim failed", "error", err)
			sleep(ctx, idleWait)
			continue
		}
		if task == nil {
			sleep(ctx, idleWait)
			continue
		}

		p.runTask(ctx, logger, task)
	}
}

// runTask settles one claimed task and records the outcome. The settlement
// itself is idempotent, so a crash between Execute and Update only means the
// task is retried and the rerun no-ops.
func (p *SettlementPool) runTask(ctx context.Context, logger *slog.Logger, task *entities.TransactionTask) {
	logger = logger.With("task_reference", task.Reference(), "attempt", task.Attempts()+1)

	err := p.settler.Execute(ctx, task)
	if err == nil {
		task.MarkDone(time.Now())
		if updateErr := p.tasks.Update(ctx, task); updateErr != nil {
			logger.ErrorContext(ctx, "task completion not recorded", "error", updateErr)
		}
		logger.InfoContext(ctx, "settlement completed")
		return
	}

	logger.WarnContext(ctx, "settlement attempt failed", "error", err)

	exhausted := task.RecordFailure(time.Now(), err.Error())
	if updateErr := p.tasks.Update(ctx, task); updateErr != nil {
		logger.ErrorContext(ctx, "task failure not recorded", "error", updateErr)
		return
	}

	if exhausted {
		if alertErr := p.settler.HandleExhaustion(ctx, task, err.Error()); alertErr != nil {
			logger.ErrorContext(ctx, "exhaustion handling failed", "error", alertErr)
		}
		logger.ErrorContext(ctx, "settlement task exhausted, operator intervention required")
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
