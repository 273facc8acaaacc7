package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opscart/capacity-compliance/pkg/engine"
	"github.com/opscart/capacity-compliance/pkg/models"
	"github.com/opscart/capacity-compliance/pkg/query"
)

// windowRequest is an explicit [start, end] or a lookback ending now
type windowRequest struct {
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
	LookbackDays int        `json:"lookback_days,omitempty"`
}

func (s *Server) window(w windowRequest) models.TimeRange {
	end := s.now().UTC()
	if w.End != nil {
		end = *w.End
	}
	if w.Start != nil {
		return models.TimeRange{Start: *w.Start, End: end}
	}
	days := w.LookbackDays
	if days <= 0 {
		days = s.cfg.LookbackDays
	}
	return models.LastDays(end, days)
}

type reportRequest struct {
	windowRequest
	Thresholds  *models.Thresholds `json:"thresholds,omitempty"`
	Filter      query.FilterSpec   `json:"filter"`
	HostSort    query.SortSpec     `json:"host_sort"`
	ClusterSort query.SortSpec     `json:"cluster_sort"`
	Page        query.PageSpec     `json:"page"`
	ClusterPage query.PageSpec     `json:"cluster_page"`
	HostFilter  []string           `json:"host_filter,omitempty"`
}

type fleetRequest struct {
	windowRequest
	RiskHorizonDays *int             `json:"risk_horizon_days,omitempty"`
	Filter          query.FilterSpec `json:"filter"`
	Sort            query.SortSpec   `json:"sort"`
	Page            query.PageSpec   `json:"page"`
	HostFilter      []string         `json:"host_filter,omitempty"`
}

// health handles GET /api/v1/health
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   s.now().UTC(),
	})
}

// createReport handles POST /api/v1/reports
func (s *Server) createReport(c *gin.Context) {
	var body reportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid report request",
			"detail": err.Error(),
		})
		return
	}

	thresholds := s.cfg.Thresholds
	if body.Thresholds != nil {
		thresholds = *body.Thresholds
	}

	report, err := s.engine.ComputeResourceReport(c.Request.Context(), engine.ReportRequest{
		Window:      s.window(body.windowRequest),
		Thresholds:  thresholds,
		Filter:      body.Filter,
		HostSort:    body.HostSort,
		ClusterSort: body.ClusterSort,
		Page:        body.Page,
		ClusterPage: body.ClusterPage,
		HostFilter:  body.HostFilter,
	})
	if err != nil {
		s.fail(c, "Failed to compute report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// hostForecast handles GET /api/v1/hosts/:id/forecast
// Query parameters:
//   - lookback_days: integer
//   - risk_horizon_days: integer
//   - end: RFC3339 timestamp the forecast is made as of
func (s *Server) hostForecast(c *gin.Context) {
	hostID := c.Param("id")

	var w windowRequest
	if v := c.Query("lookback_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lookback_days must be an integer"})
			return
		}
		w.LookbackDays = days
	}
	if v := c.Query("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be an RFC3339 timestamp"})
			return
		}
		w.End = &end
	}

	horizon := s.cfg.RiskHorizonDays
	if v := c.Query("risk_horizon_days"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "risk_horizon_days must be a non-negative integer"})
			return
		}
		horizon = h
	}

	fc, err := s.engine.ComputeDiskForecast(c.Request.Context(), hostID, s.window(w), horizon)
	if err != nil {
		s.fail(c, "Failed to compute forecast", err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

// fleetForecast handles POST /api/v1/forecasts
func (s *Server) fleetForecast(c *gin.Context) {
	var body fleetRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid forecast request",
			"detail": err.Error(),
		})
		return
	}

	horizon := s.cfg.RiskHorizonDays
	if body.RiskHorizonDays != nil {
		horizon = *body.RiskHorizonDays
	}

	result, err := s.engine.ComputeFleetForecast(c.Request.Context(), engine.FleetForecastRequest{
		Window:          s.window(body.windowRequest),
		RiskHorizonDays: horizon,
		Filter:          body.Filter,
		Sort:            body.Sort,
		Page:            body.Page,
		HostFilter:      body.HostFilter,
	})
	if err != nil {
		s.fail(c, "Failed to compute forecasts", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ingestSnapshots handles POST /api/v1/snapshots
func (s *Server) ingestSnapshots(c *gin.Context) {
	if s.writer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Snapshot ingestion requires a SQL store"})
		return
	}

	var snapshots []models.ResourceSnapshot
	if err := c.ShouldBindJSON(&snapshots); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid snapshot payload",
			"detail": err.Error(),
		})
		return
	}

	saved, err := s.writer.SaveSnapshots(c.Request.Context(), snapshots)
	if err != nil {
		s.fail(c, "Failed to save snapshots", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"received": len(snapshots),
		"saved":    saved,
	})
}

var badRequestErrors = []error{
	models.ErrInvalidThreshold,
	models.ErrInvalidWindow,
	models.ErrMalformedSnapshot,
	query.ErrInvalidPage,
	query.ErrUnknownSortField,
	query.ErrComplianceRequired,
	engine.ErrHostRequired,
}

// fail maps validation errors to 400 and everything else to 502
func (s *Server) fail(c *gin.Context, msg string, err error) {
	status := http.StatusBadGateway
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			status = http.StatusBadRequest
			break
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}

	c.JSON(status, gin.H{
		"error":  msg,
		"detail": err.Error(),
	})
}
