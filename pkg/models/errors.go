package models

import "errors"

var (
	// ErrMalformedSnapshot marks a single snapshot with negative, NaN or inconsistent values
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrInvalidThreshold is returned when a threshold band has min > max
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidWindow is returned for an empty or inverted time range
	ErrInvalidWindow = errors.New("invalid time window")
)
