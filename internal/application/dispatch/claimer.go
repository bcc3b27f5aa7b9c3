package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ultimathule1/Event-Manager/internal/clock"
	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// Claimer takes ownership of due outbox tasks for one lease period.
type Claimer struct {
	repo      outbox.Repository
	txManager TransactionManager
	clock     clock.Clock
	lease     time.Duration
}

func NewClaimer(repo outbox.Repository, txManager TransactionManager, clk clock.Clock, lease time.Duration) *Claimer {
	return &Claimer{
		repo:      repo,
		txManager: txManager,
		clock:     clk,
		lease:     lease,
	}
}

// Claim selects up to limit due IN_PROGRESS tasks of taskType and pushes their retry time
// one lease into the future, both under the same row locks. Until the lease runs out no
// other claimer can see the returned tasks.
func (c *Claimer) Claim(ctx context.Context, taskType outbox.Type, limit int) ([]*outbox.Task, error) {
	now := c.clock.Now()
	until := now.Add(c.lease)

	var claimed []*outbox.Task
	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tasks, err := c.repo.ClaimDue(txCtx, taskType, outbox.StatusInProgress, now, limit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		if err := c.repo.ExtendLease(txCtx, outbox.IDs(tasks), now, until); err != nil {
			return err
		}
		for _, t := range tasks {
			t.Claimed(now, until)
		}
		claimed = tasks
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim %s tasks: %w", taskType, err)
	}
	return claimed, nil
}
