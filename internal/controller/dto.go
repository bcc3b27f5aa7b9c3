package controller

import (
	"time"

	"github.com/ultimathule1/Event-Manager/internal/domain/event"
)

// --- Response DTOs ---

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	MaxPlaces       int       `json:"maxPlaces"`
	OccupiedPlaces  int       `json:"occupiedPlaces"`
	OwnerID         int64     `json:"ownerId"`
	LocationID      int64     `json:"locationId"`
	Cost            string    `json:"cost"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// --- Mappers ---

func FromEvent(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:              e.ID,
		Name:            e.Name,
		Status:          string(e.Status),
		StartTime:       e.StartTime,
		DurationMinutes: e.DurationMinutes,
		MaxPlaces:       e.MaxPlaces,
		OccupiedPlaces:  e.OccupiedPlaces,
		OwnerID:         e.OwnerID,
		LocationID:      e.LocationID,
		Cost:            event.FormatCost(e.CostCents),
	}
}
