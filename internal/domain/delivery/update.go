package delivery

import (
	"time"

	"github.com/google/uuid"
)

// Update is the telemetry envelope sent to the delivery service. It is built
// once per attempt chain and never mutated afterwards; retries and offline
// replays resend the same value, including its ID.
type Update struct {
	ID         string         `json:"id"`
	DeliveryID string         `json:"deliveryId"`
	StopID     string         `json:"stopId,omitempty"`
	Location   LocationSample `json:"location"`
	Status     string         `json:"status"`
	Timestamp  int64          `json:"timestamp"`
	Notes      *string        `json:"notes,omitempty"`
	Photos     []string       `json:"photos,omitempty"`
	Signature  *string        `json:"signature,omitempty"`
}

// NewRouteUpdate builds a periodic telemetry update for a route.
func NewRouteUpdate(deliveryID string, status RouteStatus, loc LocationSample, at time.Time) Update {
	return Update{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		Location:   loc,
		Status:     string(status),
		Timestamp:  at.UnixMilli(),
	}
}

// NewStopUpdate builds the update for a stop status change.
func NewStopUpdate(deliveryID, stopID string, status StopStatus, loc LocationSample, data *StopData, at time.Time) Update {
	u := Update{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		StopID:     stopID,
		Location:   loc,
		Status:     string(status),
		Timestamp:  at.UnixMilli(),
	}
	if data != nil {
		if data.Notes != nil {
			n := *data.Notes
			u.Notes = &n
		}
		if len(data.Photos) > 0 {
			u.Photos = append([]string(nil), data.Photos...)
		}
		if data.Signature != nil {
			sig := *data.Signature
			u.Signature = &sig
		}
	}
	return u
}
