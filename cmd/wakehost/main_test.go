package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fgeck/wakehost/internal/config"
	"github.com/fgeck/wakehost/internal/services/runner"
	"github.com/fgeck/wakehost/internal/services/waker"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", err: nil, want: 0},
		{name: "invalid target", err: &waker.InvalidTargetError{Field: "mac_address", Value: "00:00:00:00:00:00", Reason: "placeholder"}, want: 2},
		{name: "config error", err: fmt.Errorf("%w: poll.method must be one of: icmp, exec, tcp", config.ErrInvalid), want: 2},
		{name: "wake error", err: &waker.WakeError{Addr: "192.168.4.255:9", Err: errors.New("network is unreachable")}, want: 3},
		{name: "timeout", err: &waker.TimeoutError{Host: "192.168.4.101", Attempts: 3, Interval: time.Second}, want: 4},
		{name: "wrapped timeout", err: fmt.Errorf("run: %w", &waker.TimeoutError{Host: "h", Attempts: 1}), want: 4},
		{name: "ssh", err: &runner.SSHError{Host: "192.168.4.101", Attempts: 6, Err: errors.New("refused")}, want: 5},
		{name: "unreachable", err: fmt.Errorf("192.168.4.101: %w", waker.ErrHostUnreachable), want: 1},
		{name: "cancelled", err: context.Canceled, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
