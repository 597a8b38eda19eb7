package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrExitedBeforeReady is returned when an engine process ends while the
// orchestrator is still waiting for it to become ready.
var ErrExitedBeforeReady = errors.New("process exited before becoming ready")

const healthDialTimeout = 3 * time.Second

// CheckPort reports whether a TCP connection to address succeeds.
func CheckPort(ctx context.Context, address string) error {
	dialer := &net.Dialer{Timeout: healthDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return conn.Close()
}

// WaitForPort polls address until a TCP connection succeeds, exited is
// closed, or ctx ends.
func WaitForPort(ctx context.Context, address string, interval time.Duration, exited <-chan struct{}) error {
	dialer := &net.Dialer{Timeout: time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-exited:
			return ErrExitedBeforeReady
		case <-ctx.Done():
			return fmt.Errorf("%s not reachable: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}
