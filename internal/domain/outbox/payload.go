package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
)

var validate = validator.New()

// NotificationPayload is the body of an "event changed" notification.
type NotificationPayload struct {
	EventID int64 `json:"eventId" validate:"gt=0"`
	OwnerID int64 `json:"ownerEventId" validate:"gt=0"`
	// ChangedByUserID is nil when the scheduler made the change.
	ChangedByUserID *int64          `json:"changedEventByUserId"`
	SubscriberIDs   []int64         `json:"eventSubscribers" validate:"required,min=1,dive,gt=0"`
	Changes         event.ChangeSet `json:"changedEventFields" validate:"required,min=1"`
}

// NewNotificationPayload builds the payload for a before/after pair.
func NewNotificationPayload(before, after *event.Event, changedBy *int64) NotificationPayload {
	return NotificationPayload{
		EventID:         after.ID,
		OwnerID:         after.OwnerID,
		ChangedByUserID: changedBy,
		SubscriberIDs:   after.SubscriberIDs,
		Changes:         event.Diff(before, after),
	}
}

func (p NotificationPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrValidationFailed, err)
	}
	return nil
}

// Encode validates and serialises the payload.
func (p NotificationPayload) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}
	return data, nil
}

// DecodeNotificationPayload parses a stored payload. Any failure wraps ErrMalformedPayload.
func DecodeNotificationPayload(raw []byte) (*NotificationPayload, error) {
	var p NotificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, domainErrors.NewDomainError("malformed_payload", "decode notification payload", fmt.Errorf("%w: %v", domainErrors.ErrMalformedPayload, err))
	}
	if err := p.Validate(); err != nil {
		return nil, domainErrors.NewDomainError("malformed_payload", "validate notification payload", fmt.Errorf("%w: %v", domainErrors.ErrMalformedPayload, err))
	}
	return &p, nil
}
