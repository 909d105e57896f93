package delivery

import "slices"

type StopStatus string

const (
	StopPending    StopStatus = "pending"
	StopInProgress StopStatus = "in_progress"
	StopCompleted  StopStatus = "completed"
	StopFailed     StopStatus = "failed" // also the outcome of an explicit skip
)

type RouteStatus string

const (
	RouteNotStarted RouteStatus = "not_started"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
)

// Stop is one customer visit within a route.
type Stop struct {
	ID          string         `json:"id" validate:"required"`
	CustomerRef string         `json:"customerRef,omitempty"`
	Location    LocationSample `json:"location"`
	Status      StopStatus     `json:"status" validate:"required,oneof=pending in_progress completed failed"`
	Notes       *string        `json:"notes,omitempty"`
	Photos      []string       `json:"photos,omitempty"`
	Signature   *string        `json:"signature,omitempty"`
}

// Route is an ordered delivery job. Stop order is significant.
type Route struct {
	ID     string      `json:"id" validate:"required"`
	Status RouteStatus `json:"status" validate:"omitempty,oneof=not_started in_progress completed"`
	Stops  []Stop      `json:"stops" validate:"dive"`
}

// StopData carries the optional proof-of-delivery payload of a stop update.
type StopData struct {
	Notes     *string  `json:"notes,omitempty"`
	Photos    []string `json:"photos,omitempty"`
	Signature *string  `json:"signature,omitempty"`
}

// Clone returns a deep copy so callers can hand routes across goroutines.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	out := *r
	out.Stops = make([]Stop, len(r.Stops))
	for i, s := range r.Stops {
		out.Stops[i] = s.clone()
	}
	return &out
}

func (s Stop) clone() Stop {
	if s.Photos != nil {
		s.Photos = append([]string(nil), s.Photos...)
	}
	if s.Notes != nil {
		n := *s.Notes
		s.Notes = &n
	}
	if s.Signature != nil {
		sig := *s.Signature
		s.Signature = &sig
	}
	return s
}

// StopIndex returns the position of stopID, or -1.
func (r *Route) StopIndex(stopID string) int {
	for i := range r.Stops {
		if r.Stops[i].ID == stopID {
			return i
		}
	}
	return -1
}

// CurrentStopIndex returns the first stop, in route order, that is pending or
// in progress. Failed stops are skipped over. Returns -1 when none is left.
func (r *Route) CurrentStopIndex() int {
	for i := range r.Stops {
		switch r.Stops[i].Status {
		case StopPending, StopInProgress:
			return i
		}
	}
	return -1
}

// AllStopsCompleted reports whether every stop is completed. Failed stops do
// not count; an empty route is never complete.
func (r *Route) AllStopsCompleted() bool {
	if len(r.Stops) == 0 {
		return false
	}
	for i := range r.Stops {
		if r.Stops[i].Status != StopCompleted {
			return false
		}
	}
	return true
}

// Apply patches a stop's status and proof-of-delivery fields in place.
// Photos already attached to the stop are not added twice.
func (s *Stop) Apply(status StopStatus, data *StopData) {
	s.Status = status
	if data == nil {
		return
	}
	if data.Notes != nil {
		n := *data.Notes
		s.Notes = &n
	}
	for _, p := range data.Photos {
		if !slices.Contains(s.Photos, p) {
			s.Photos = append(s.Photos, p)
		}
	}
	if data.Signature != nil {
		sig := *data.Signature
		s.Signature = &sig
	}
}

// Reorder returns the stops rearranged to follow stopIDs. Every id must name
// an existing stop exactly once and every stop must be named.
func (r *Route) Reorder(stopIDs []string) ([]Stop, bool) {
	if len(stopIDs) != len(r.Stops) {
		return nil, false
	}
	out := make([]Stop, 0, len(stopIDs))
	seen := make(map[string]bool, len(stopIDs))
	for _, id := range stopIDs {
		idx := r.StopIndex(id)
		if idx < 0 || seen[id] {
			return nil, false
		}
		seen[id] = true
		out = append(out, r.Stops[idx].clone())
	}
	return out, true
}
