package output

import (
	"context"
	"fmt"
	"io"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
)

// Handler defines the interface for output formatting
type Handler interface {
	DisplayReport(ctx context.Context, report *engine.Report) error
	DisplayForecast(ctx context.Context, forecast models.DiskForecast) error
	DisplayFleet(ctx context.Context, fleet *engine.FleetForecast) error
	Format() string
}

// NewHandler returns the handler for format, "text" or "json"
func NewHandler(format string, w io.Writer) (Handler, error) {
	switch format {
	case "", "text":
		return &TextHandler{w: w}, nil
	case "json":
		return &JSONHandler{w: w}, nil
	default:
		return nil, fmt.Errorf("output must be text or json, got %q", format)
	}
}
