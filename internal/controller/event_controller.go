package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	domainErrors "github.com/ultimathule1/Event-Manager/internal/domain/errors"
	"github.com/ultimathule1/Event-Manager/internal/domain/event"
	customMW "github.com/ultimathule1/Event-Manager/internal/middleware"
)

// EventCanceller is the use case behind POST /events/{id}/cancel.
type EventCanceller interface {
	Execute(ctx context.Context, eventID, userID int64) (*event.Event, error)
}

type EventController struct {
	cancelUC EventCanceller
}

func NewEventController(cancelUC EventCanceller) *EventController {
	return &EventController{cancelUC: cancelUC}
}

// Cancel moves a WAIT_START event to CANCELLED on behalf of the authenticated user
// and queues a notification for its subscribers.
func (c *EventController) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || eventID <= 0 {
		writeError(w, domainErrors.NewValidationError("id", "must be a positive integer"))
		return
	}

	userID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "auth_required"})
		return
	}

	cancelled, err := c.cancelUC.Execute(r.Context(), eventID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromEvent(cancelled))
}
