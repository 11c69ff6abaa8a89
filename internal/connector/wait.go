package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StatusAPI is the subset of the backend client the poller depends on.
type StatusAPI interface {
	Connection(ctx context.Context, connectionID string) (ConnectionInfo, error)
}

var _ StatusAPI = (*Client)(nil)

// WaitForActive polls the backend until the connection attempt becomes
// active, fails, or the hard timeout expires. Waiting is always bounded;
// interval and timeout default to 2s / 2m when zero.
func WaitForActive(ctx context.Context, api StatusAPI, connectionID string, interval, timeout time.Duration) (ConnectionInfo, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := api.Connection(ctx, connectionID)
		switch {
		case err != nil && ctx.Err() == nil:
			// Transient poll errors are retried until the deadline.
			slog.Debug("connector: poll failed, retrying", "connection", connectionID, "err", err)
		case err == nil && info.Status == StatusActive:
			return info, nil
		case err == nil && info.Status == StatusFailed:
			return info, fmt.Errorf("connection %s failed on the backend", connectionID)
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return ConnectionInfo{}, fmt.Errorf("timed out after %s waiting for connection %s", timeout, connectionID)
			}
			return ConnectionInfo{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
