// Package ctl is the operator client for a running airsense service.
package ctl

import "time"

// Config controls a single airsensectl invocation.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Count is the number of snapshots watch prints before returning; 0 runs until cancelled.
	Count int

	// MinVendorConfidence is the threshold check expects the service to select at.
	MinVendorConfidence uint8

	Verbose bool
}

// Defaults.
const (
	DefaultBaseURL             = "http://localhost:9080"
	DefaultTimeout             = 10 * time.Second
	DefaultMinVendorConfidence = 2
)
