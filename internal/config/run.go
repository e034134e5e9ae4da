package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Run holds the experiment settings used by the command line tool
type Run struct {
	// Environment
	Bits     int `mapstructure:"bits"`
	MaxSteps int `mapstructure:"max_steps"`

	// Trial schedule
	ExploreTrials int    `mapstructure:"explore_trials"`
	ExploitTrials int    `mapstructure:"exploit_trials"`
	Interleave    bool   `mapstructure:"interleave"`
	Seed          uint64 `mapstructure:"seed"`

	// Reporting
	MetricsWindow int           `mapstructure:"metrics_window"`
	PlotPath      string        `mapstructure:"plot_path"`
	StatusAddr    string        `mapstructure:"status_addr"`
	StatusLinger  time.Duration `mapstructure:"status_linger"`

	// Events
	EventsURL     string `mapstructure:"events_url"`
	EventsSubject string `mapstructure:"events_subject"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

// DefaultRun returns run settings with sensible defaults
func DefaultRun() *Run {
	return &Run{
		Bits:          4,
		MaxSteps:      20,
		ExploreTrials: 500,
		ExploitTrials: 100,
		Interleave:    false,
		Seed:          0, // derive from the clock
		MetricsWindow: 50,
		PlotPath:      "",
		StatusAddr:    "",
		StatusLinger:  0,
		EventsURL:     "",
		EventsSubject: "acs2her",
		LogLevel:      "info",
		LogPretty:     false,
	}
}

// Validate checks if the run settings are valid
func (r *Run) Validate() error {
	if r.Bits <= 0 {
		return fmt.Errorf("bits must be positive")
	}
	if r.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive")
	}
	if r.ExploreTrials < 0 || r.ExploitTrials < 0 {
		return fmt.Errorf("trial counts must not be negative")
	}
	if r.MetricsWindow <= 0 {
		return fmt.Errorf("metrics_window must be positive")
	}
	if r.EventsURL != "" && r.EventsSubject == "" {
		return fmt.Errorf("events_subject is required when events_url is set")
	}
	if _, err := zerolog.ParseLevel(r.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", r.LogLevel, err)
	}
	return nil
}
