package core

import (
	"fmt"
	"math"
)

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewValidationError(ErrInvalidLatitude,
			fmt.Sprintf("latitude must be between -90 and 90, got %f", lat))
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return NewValidationError(ErrInvalidLongitude,
			fmt.Sprintf("longitude must be between -180 and 180, got %f", lon))
	}
	return nil
}

// ValidateDepth checks a search depth against an upper bound.
// A maxDepth of 0 disables the upper bound.
func ValidateDepth(depth, maxDepth int) error {
	if depth < 0 {
		return NewValidationError(ErrInvalidDepth,
			fmt.Sprintf("depth must not be negative, got %d", depth))
	}
	if maxDepth > 0 && depth > maxDepth {
		return NewError(ErrInvalidDepth,
			fmt.Sprintf("depth must be at most %d, got %d", maxDepth, depth)).
			WithGuidance(fmt.Sprintf("Request a depth of %d or less", maxDepth))
	}
	return nil
}

// ValidateRadius checks a bounding radius in meters.
// Zero is allowed; it selects nothing but the root.
func ValidateRadius(radius, maxRadius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return NewValidationError(ErrInvalidRadius,
			fmt.Sprintf("radius must be a non-negative number, got %f", radius))
	}
	if maxRadius > 0 && radius > maxRadius {
		return NewError(ErrInvalidRadius,
			fmt.Sprintf("radius must be less than or equal to %.0f, got %.0f", maxRadius, radius)).
			WithGuidance(fmt.Sprintf("Specify a radius less than %.0f", maxRadius))
	}
	return nil
}
