package delivery

import (
	"fmt"

	appErrors "delivery-agent/pkg/errors"
)

// State machine for stop status transitions. Progress is monotonic; failed
// is reachable from any open state through an explicit skip.
var validStopTransitions = map[StopStatus][]StopStatus{
	StopPending: {
		StopInProgress,
		StopCompleted,
		StopFailed,
	},
	StopInProgress: {
		StopCompleted,
		StopFailed,
	},
	StopCompleted: {
		// Terminal state - no transitions
	},
	StopFailed: {
		// Terminal state - no transitions
	},
}

var validRouteTransitions = map[RouteStatus][]RouteStatus{
	RouteNotStarted: {RouteInProgress},
	RouteInProgress: {RouteCompleted},
	RouteCompleted:  {},
}

// ValidateStopTransition checks if a stop status change is allowed. Moving a
// stop to the status it already has is not an error; callers treat it as a
// no-op.
func ValidateStopTransition(current, next StopStatus) error {
	if current == next {
		return nil
	}
	allowed, exists := validStopTransitions[current]
	if !exists {
		return appErrors.NewAppError(
			"INVALID_STATUS",
			fmt.Sprintf("Unknown current stop status: %s", current),
			appErrors.ErrInvalidTransition,
		)
	}

	for _, s := range allowed {
		if s == next {
			return nil
		}
	}

	return appErrors.NewAppError(
		"INVALID_TRANSITION",
		fmt.Sprintf("Cannot transition stop from %s to %s", current, next),
		appErrors.ErrInvalidTransition,
	)
}

// ValidateRouteTransition checks if a route status change is allowed.
func ValidateRouteTransition(current, next RouteStatus) error {
	if current == "" {
		current = RouteNotStarted
	}
	if current == next {
		return nil
	}
	for _, s := range validRouteTransitions[current] {
		if s == next {
			return nil
		}
	}
	return appErrors.NewAppError(
		"INVALID_TRANSITION",
		fmt.Sprintf("Cannot transition route from %s to %s", current, next),
		appErrors.ErrInvalidTransition,
	)
}

// GetAllowedStopTransitions returns allowed next statuses
func GetAllowedStopTransitions(current StopStatus) []StopStatus {
	return validStopTransitions[current]
}
