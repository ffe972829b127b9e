package models

import "time"

// Alert is published when fusion flags a recommendation as urgent.
type Alert struct {
	RequestID       string    `json:"request_id"`
	Location        string    `json:"location,omitempty"`
	Query           string    `json:"query"`
	Recommendations []string  `json:"recommendations"`
	Insights        []Insight `json:"insights,omitempty"`
	RaisedAt        time.Time `json:"raised_at"`
}
