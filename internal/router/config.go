package router

import "time"

// Config holds routing knobs.
type Config struct {
	// ReplayCount is how many recent history entries a joining user gets.
	ReplayCount int

	// StoreTimeout bounds each persistence call.
	StoreTimeout time.Duration
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ReplayCount:  20,
		StoreTimeout: 5 * time.Second,
	}
}
