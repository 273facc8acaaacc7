package engine

import "errors"

var (
	// ErrDataUnavailable marks a report built from no snapshots. It is carried
	// on the report, never returned to the caller.
	ErrDataUnavailable = errors.New("no snapshot data available for the window")

	// ErrHostRequired is returned when a forecast is requested without a host id
	ErrHostRequired = errors.New("host id is required")
)
