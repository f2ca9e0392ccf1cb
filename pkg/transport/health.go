package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UnhealthyThreshold is the number of consecutive failed deliveries after
// which the collector is reported unhealthy.
const UnhealthyThreshold = 3

// Health describes recent delivery outcomes.
type Health struct {
	// Healthy is false after UnhealthyThreshold consecutive failures
	Healthy bool `json:"healthy"`

	// ConsecutiveFailures counts sequential failed deliveries
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastError is the most recent delivery error (empty if healthy)
	LastError string `json:"last_error,omitempty"`

	// LastSuccess is the time of the last successful delivery
	LastSuccess time.Time `json:"last_success,omitempty"`

	// TotalDeliveries counts every attempt that reached the collector
	TotalDeliveries int64 `json:"total_deliveries"`

	// FailedDeliveries counts attempts that failed at or after the network
	FailedDeliveries int64 `json:"failed_deliveries"`
}

// Health returns a snapshot of the delivery health.
func (c *Client) Health() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

func (c *Client) recordSuccess() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if !c.health.Healthy {
		c.logger.Info("trace collector marked healthy",
			"previous_failures", c.health.ConsecutiveFailures,
		)
	}

	c.health.Healthy = true
	c.health.ConsecutiveFailures = 0
	c.health.LastError = ""
	c.health.LastSuccess = time.Now()
	c.health.TotalDeliveries++
}

func (c *Client) recordFailure(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.ConsecutiveFailures++
	c.health.TotalDeliveries++
	c.health.FailedDeliveries++
	c.health.LastError = err.Error()

	if c.health.Healthy && c.health.ConsecutiveFailures >= UnhealthyThreshold {
		c.health.Healthy = false
		c.logger.Warn("trace collector marked unhealthy",
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// CheckConfigured is a readiness check that fails when no endpoint is set.
func (c *Client) CheckConfigured(ctx context.Context) error {
	if c.Endpoint() == "" {
		return errors.New("no trace collector endpoint configured")
	}
	return nil
}

// CheckHealthy is a readiness check that fails while the collector is
// unhealthy.
func (c *Client) CheckHealthy(ctx context.Context) error {
	h := c.Health()
	if h.Healthy {
		return nil
	}
	return fmt.Errorf("%d consecutive delivery failures: %s", h.ConsecutiveFailures, h.LastError)
}
