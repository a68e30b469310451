package scheduler

import (
	"time"
)

// Config controls the batch run loop.
type Config struct {
	RunInterval    time.Duration
	WorkerPoolSize int
	JobTimeout     time.Duration
	RetryMaxWait   time.Duration
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:    time.Hour,
		WorkerPoolSize: 8,
		JobTimeout:     10 * time.Minute,
		RetryMaxWait:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = defaults.WorkerPoolSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = defaults.RetryMaxWait
	}
	return c
}
