package delivery

import "fmt"

// LocationSample is one position fix. Only the latest sample matters.
type LocationSample struct {
	Latitude    float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64  `json:"longitude" validate:"gte=-180,lte=180"`
	TimestampMs int64    `json:"timestamp"`
	Accuracy    float64  `json:"accuracy" validate:"gte=0"`
	Altitude    *float64 `json:"altitude,omitempty"`
	Speed       *float64 `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Heading     *float64 `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Provider    string   `json:"provider,omitempty"`
}

const (
	ProviderForeground = "foreground"
	ProviderBackground = "background"
)

// LocationValidationError represents a rejected location fix.
type LocationValidationError struct {
	Field   string
	Message string
}

func (e *LocationValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

// ValidateSample checks coordinate ranges of a fix.
func ValidateSample(s LocationSample) error {
	if s.TimestampMs <= 0 {
		return &LocationValidationError{Field: "timestamp", Message: "timestamp is required"}
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return &LocationValidationError{Field: "latitude", Message: "latitude must be between -90 and 90"}
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return &LocationValidationError{Field: "longitude", Message: "longitude must be between -180 and 180"}
	}
	if s.Accuracy < 0 {
		return &LocationValidationError{Field: "accuracy", Message: "accuracy must be non-negative"}
	}
	if s.Speed != nil && *s.Speed < 0 {
		return &LocationValidationError{Field: "speed", Message: "speed must be non-negative"}
	}
	return nil
}
