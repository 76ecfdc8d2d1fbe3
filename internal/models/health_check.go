package models

import "time"

type HealthCheck struct {
	Name           string    `json:"name"`
	IsFailing      bool      `json:"failing"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checkedAt"`
}

type HealthReport struct {
	Healthy bool          `json:"healthy"`
	Checks  []HealthCheck `json:"checks"`
}
