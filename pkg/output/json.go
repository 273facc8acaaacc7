package output

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
)

// JSONHandler writes indented JSON documents
type JSONHandler struct {
	w io.Writer
}

func (h *JSONHandler) Format() string { return "json" }

func (h *JSONHandler) DisplayReport(ctx context.Context, report *engine.Report) error {
	return h.encode(report)
}

func (h *JSONHandler) DisplayForecast(ctx context.Context, forecast models.DiskForecast) error {
	return h.encode(map[string]interface{}{
		"forecast":  forecast,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *JSONHandler) DisplayFleet(ctx context.Context, fleet *engine.FleetForecast) error {
	return h.encode(fleet)
}

func (h *JSONHandler) encode(v interface{}) error {
	encoder := json.NewEncoder(h.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
