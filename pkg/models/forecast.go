package models

import "time"

// DiskSamplePoint is one historical disk reading for a host
type DiskSamplePoint struct {
	Timestamp time.Time `json:"timestamp"`
	UsedDisk  float64   `json:"used_disk"`
	TotalDisk float64   `json:"total_disk"`
}

// DiskForecast is the projected disk exhaustion for a host.
// PredictedFullDate and DaysUntilFull are nil when there is no forecast,
// which covers both insufficient history and non-positive growth.
type DiskForecast struct {
	HostID              string     `json:"host_id"`
	CurrentUsagePercent float64    `json:"current_usage_percent"`
	CurrentUsedDisk     float64    `json:"current_used_disk"`
	CurrentTotalDisk    float64    `json:"current_total_disk"`
	DailyGrowthRate     float64    `json:"daily_growth_rate"` // disk units per day
	PredictedFullDate   *time.Time `json:"predicted_full_date"`
	DaysUntilFull       *int       `json:"days_until_full"`
	IsHighRisk          bool       `json:"is_high_risk"`
	Confidence          float64    `json:"confidence"` // R² of the fit
	SampleCount         int        `json:"sample_count"`
}

// HasForecast reports whether an exhaustion date was projected
func (f *DiskForecast) HasForecast() bool {
	return f.PredictedFullDate != nil
}
