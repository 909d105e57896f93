package delivery

import (
	"errors"
	"testing"
	"time"

	appErrors "delivery-agent/pkg/errors"
	"delivery-agent/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRoute(statuses ...StopStatus) *Route {
	r := &Route{ID: "R1", Status: RouteInProgress}
	for i, s := range statuses {
		r.Stops = append(r.Stops, Stop{
			ID:          string(rune('A'+i)) + "-stop",
			CustomerRef: "CUST",
			Status:      s,
		})
	}
	return r
}

func timeAt(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func TestCurrentStopIndex(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StopStatus
		expected int
	}{
		{"first pending", []StopStatus{StopPending, StopPending}, 0},
		{"skips completed", []StopStatus{StopCompleted, StopPending}, 1},
		{"skips failed", []StopStatus{StopFailed, StopCompleted, StopInProgress}, 2},
		{"in progress counts", []StopStatus{StopInProgress, StopPending}, 0},
		{"nothing left", []StopStatus{StopCompleted, StopFailed}, -1},
		{"empty route", nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, createTestRoute(tt.statuses...).CurrentStopIndex())
		})
	}
}

func TestAllStopsCompleted(t *testing.T) {
	assert.True(t, createTestRoute(StopCompleted, StopCompleted).AllStopsCompleted())
	assert.False(t, createTestRoute(StopCompleted, StopFailed).AllStopsCompleted(), "failed stops never complete a route")
	assert.False(t, createTestRoute(StopCompleted, StopPending).AllStopsCompleted())
	assert.False(t, createTestRoute().AllStopsCompleted())
}

func TestRouteCloneIsDeep(t *testing.T) {
	notes := "leave at door"
	r := createTestRoute(StopPending)
	r.Stops[0].Notes = &notes
	r.Stops[0].Photos = []string{"p1"}

	c := r.Clone()
	c.Stops[0].Status = StopCompleted
	*c.Stops[0].Notes = "changed"
	c.Stops[0].Photos[0] = "p2"

	assert.Equal(t, StopPending, r.Stops[0].Status)
	assert.Equal(t, "leave at door", *r.Stops[0].Notes)
	assert.Equal(t, "p1", r.Stops[0].Photos[0])
}

func TestStopApply(t *testing.T) {
	notes := "signed by neighbour"
	sig := "sig-1"
	s := Stop{ID: "S1", Status: StopPending, Photos: []string{"a"}}

	s.Apply(StopCompleted, &StopData{Notes: &notes, Photos: []string{"b"}, Signature: &sig})

	assert.Equal(t, StopCompleted, s.Status)
	assert.Equal(t, []string{"a", "b"}, s.Photos)
	require.NotNil(t, s.Signature)
	assert.Equal(t, "sig-1", *s.Signature)
	assert.Equal(t, notes, *s.Notes)
}

func TestReorder(t *testing.T) {
	r := createTestRoute(StopPending, StopPending, StopPending)

	stops, ok := r.Reorder([]string{"C-stop", "A-stop", "B-stop"})
	require.True(t, ok)
	assert.Equal(t, "C-stop", stops[0].ID)
	assert.Equal(t, "A-stop", stops[1].ID)

	_, ok = r.Reorder([]string{"C-stop", "A-stop"})
	assert.False(t, ok, "missing ids")

	_, ok = r.Reorder([]string{"C-stop", "C-stop", "A-stop"})
	assert.False(t, ok, "duplicate ids")

	_, ok = r.Reorder([]string{"C-stop", "X-stop", "A-stop"})
	assert.False(t, ok, "unknown id")
}

func TestValidateStopTransition(t *testing.T) {
	tests := []struct {
		from, to StopStatus
		valid    bool
	}{
		{StopPending, StopInProgress, true},
		{StopPending, StopCompleted, true},
		{StopPending, StopFailed, true},
		{StopInProgress, StopCompleted, true},
		{StopInProgress, StopPending, false},
		{StopCompleted, StopCompleted, true},
		{StopCompleted, StopPending, false},
		{StopCompleted, StopFailed, false},
		{StopFailed, StopCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateStopTransition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
		})
	}
}

func TestValidateRouteTransition(t *testing.T) {
	assert.NoError(t, ValidateRouteTransition("", RouteInProgress))
	assert.NoError(t, ValidateRouteTransition(RouteInProgress, RouteCompleted))
	assert.Error(t, ValidateRouteTransition(RouteCompleted, RouteInProgress))
	assert.Error(t, ValidateRouteTransition(RouteNotStarted, RouteCompleted))
}

func TestValidateSample(t *testing.T) {
	ok := LocationSample{Latitude: 52.5, Longitude: 13.4, TimestampMs: 1, Accuracy: 5}
	assert.NoError(t, ValidateSample(ok))

	bad := ok
	bad.Latitude = 91
	var verr *LocationValidationError
	require.ErrorAs(t, ValidateSample(bad), &verr)
	assert.Equal(t, "latitude", verr.Field)

	bad = ok
	bad.TimestampMs = 0
	assert.Error(t, ValidateSample(bad))
}

func TestNewStopUpdateCopiesProof(t *testing.T) {
	notes := "ok"
	photos := []string{"img-1"}
	sig := "sig-1"
	data := &StopData{Notes: &notes, Photos: photos, Signature: &sig}
	u := NewStopUpdate("R1", "S1", StopCompleted, LocationSample{TimestampMs: 1}, data, timeAt(1000))
	photos[0] = "mutated"
	notes = "mutated"

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "R1", u.DeliveryID)
	assert.Equal(t, "S1", u.StopID)
	assert.Equal(t, "completed", u.Status)
	assert.Equal(t, int64(1000), u.Timestamp)
	assert.Equal(t, []string{"img-1"}, u.Photos)
	require.NotNil(t, u.Notes)
	assert.Equal(t, "ok", *u.Notes)

	*data.Signature = "forged"
	require.NotNil(t, u.Signature)
	assert.Equal(t, "sig-1", *u.Signature)
}

func TestStopApplySkipsKnownPhotos(t *testing.T) {
	s := Stop{ID: "S1", Status: StopPending}
	data := &StopData{Photos: []string{"a", "b"}}

	s.Apply(StopFailed, data)
	s.Apply(StopFailed, data)
	s.Apply(StopFailed, &StopData{Photos: []string{"b", "c"}})

	assert.Equal(t, []string{"a", "b", "c"}, s.Photos)
}

func TestStopWithoutCustomerRefValidates(t *testing.T) {
	r := &Route{
		ID: "R1",
		Stops: []Stop{
			{ID: "S1", Status: StopPending},
			{ID: "S2", Status: StopPending},
		},
	}
	assert.NoError(t, utils.ValidateStruct(r))
}
