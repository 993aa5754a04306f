package core

import (
	"errors"
	"time"
)

// TimeoutConfig configures timeouts for live sessions.
type TimeoutConfig struct {
	// ComponentMount is the timeout for component Mount() calls.
	ComponentMount time.Duration

	// ComponentRender is the timeout for component Render() calls.
	ComponentRender time.Duration

	// ComponentEvent is the timeout for HandleEvent() and HandleInfo() calls.
	ComponentEvent time.Duration

	// WebSocketRead is the idle read timeout of a live connection.
	WebSocketRead time.Duration

	// WebSocketWrite is the write timeout of a live connection.
	WebSocketWrite time.Duration

	// SessionIdle is how long a session may stay without activity.
	SessionIdle time.Duration

	// SessionCleanup is the interval for sweeping idle sessions.
	SessionCleanup time.Duration

	// GracefulShutdown bounds server shutdown.
	GracefulShutdown time.Duration
}

// DefaultTimeoutConfig returns the production defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ComponentMount:   5 * time.Second,
		ComponentRender:  2 * time.Second,
		ComponentEvent:   10 * time.Second,
		WebSocketRead:    60 * time.Second,
		WebSocketWrite:   10 * time.Second,
		SessionIdle:      30 * time.Minute,
		SessionCleanup:   5 * time.Minute,
		GracefulShutdown: 30 * time.Second,
	}
}

// RelaxedTimeoutConfig returns more relaxed timeouts for development.
func RelaxedTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ComponentMount:   30 * time.Second,
		ComponentRender:  10 * time.Second,
		ComponentEvent:   60 * time.Second,
		WebSocketRead:    300 * time.Second,
		WebSocketWrite:   30 * time.Second,
		SessionIdle:      2 * time.Hour,
		SessionCleanup:   30 * time.Minute,
		GracefulShutdown: 60 * time.Second,
	}
}

// ErrInvalidTimeout is returned by Validate for a non-positive timeout.
var ErrInvalidTimeout = errors.New("timeouts must be positive")

// Validate checks that every timeout is set.
func (c TimeoutConfig) Validate() error {
	for _, d := range []time.Duration{
		c.ComponentMount, c.ComponentRender, c.ComponentEvent,
		c.WebSocketRead, c.WebSocketWrite,
		c.SessionIdle, c.SessionCleanup, c.GracefulShutdown,
	} {
		if d <= 0 {
			return ErrInvalidTimeout
		}
	}
	return nil
}
