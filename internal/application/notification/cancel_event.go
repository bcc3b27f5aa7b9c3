package notification

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
)

// CancelEventUseCase moves a not-yet-started event to CANCELLED and tells its subscribers.
type CancelEventUseCase struct {
	events    event.Repository
	notifier  *Notifier
	txManager TransactionManager
}

func NewCancelEventUseCase(events event.Repository, notifier *Notifier, txManager TransactionManager) *CancelEventUseCase {
	return &CancelEventUseCase{
		events:    events,
		notifier:  notifier,
		txManager: txManager,
	}
}

// Execute cancels eventID on behalf of userID. Only the owner may cancel.
func (uc *CancelEventUseCase) Execute(ctx context.Context, eventID, userID int64) (*event.Event, error) {
	var cancelled *event.Event

	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		before, err := uc.events.GetByID(txCtx, eventID)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if before.OwnerID != userID {
			return domainErrors.ErrForbidden
		}
		if before.Status == event.StatusCancelled {
			return domainErrors.ErrEventAlreadyCancelled
		}

		after, err := before.WithStatus(event.StatusCancelled)
		if err != nil {
			return err
		}

		n, err := uc.events.UpdateStatusIfCurrent(txCtx, eventID, before.Status, event.StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel event: %w", err)
		}
		if n == 0 {
			// The scheduler moved it between our read and write.
			return domainErrors.NewDomainError("concurrent_change", "event status changed while cancelling", domainErrors.ErrOptimisticLockFailed)
		}

		if _, err := uc.notifier.EnqueueChange(txCtx, before, after, &userID); err != nil && !errors.Is(err, domainErrors.ErrNoSubscribers) {
			return err
		}

		cancelled = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
