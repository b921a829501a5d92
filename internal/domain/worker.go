package domain

import "time"

// WorkerInfo represents information about a worker pool instance
type WorkerInfo struct {
	ID            string    `json:"id"`
	Capacity      int       `json:"capacity"`
	CurrentLoad   int       `json:"currentLoad"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	Hostname      string    `json:"hostname"`
	Version       string    `json:"version"`
	IsActive      bool      `json:"isActive"`
}

// RateLimitResult is the outcome of a sliding window check
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}
