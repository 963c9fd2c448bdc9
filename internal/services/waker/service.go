// Package waker makes sure a host is awake, sending a Wake-on-LAN packet only
// when the host does not already answer probes.
package waker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/fgeck/wakehost/internal/retry"
	"github.com/fgeck/wakehost/internal/services/probe"
	"github.com/fgeck/wakehost/internal/services/wol"
	"github.com/rs/zerolog"
)

var errNotAwake = errors.New("host not awake yet")

// Service defines the interface for the host waker.
type Service interface {
	EnsureAwake(ctx context.Context, target models.WakeTarget, policy models.PollPolicy) (*models.WakeReport, error)
	Check(ctx context.Context, target models.WakeTarget, policy models.PollPolicy) (*models.WakeReport, error)
}

// Impl implements the waker Service interface.
type Impl struct {
	wolSvc   wol.Service
	probeSvc probe.Service
	logger   zerolog.Logger
}

// New creates a new host waker.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		wolSvc:   wol.New(logger),
		probeSvc: probe.New(logger),
		logger:   logger,
	}
}

// NewWithServices creates a new host waker with custom services (for testing).
func NewWithServices(logger zerolog.Logger, wolSvc wol.Service, probeSvc probe.Service) *Impl {
	return &Impl{
		wolSvc:   wolSvc,
		probeSvc: probeSvc,
		logger:   logger,
	}
}

// IsReachable sends a single probe to host. Probe failures count as not reachable.
func (s *Impl) IsReachable(ctx context.Context, host string, policy models.PollPolicy) bool {
	result, err := s.probeSvc.Probe(ctx, host, policy)
	if err != nil {
		s.logger.Warn().Err(err).Str("host", host).Msg("probe failed")
		return false
	}
	if result.Error != nil {
		s.logger.Warn().Err(result.Error).Str("host", host).Msg("probe failed")
		return false
	}

	if result.Reachable {
		s.logger.Debug().Str("host", host).Dur("rtt", result.RTT).Msg("host answered")
	}

	return result.Reachable
}

// Wake sends one magic packet for target.
func (s *Impl) Wake(ctx context.Context, target models.WakeTarget) error {
	addr := target.BroadcastAddr()
	if target.Interface != "" {
		addr = target.Interface
	}

	result, err := s.wolSvc.Send(ctx, target)
	if err != nil {
		return &WakeError{Addr: addr, Err: err}
	}
	if result.Error != nil {
		return &WakeError{Addr: addr, Err: result.Error}
	}

	return nil
}

// WaitUntilAwake probes host up to policy.MaxAttempts times, policy.Interval
// apart, and returns the number of probes issued.
func (s *Impl) WaitUntilAwake(ctx context.Context, host string, policy models.PollPolicy) (int, error) {
	s.logger.Info().
		Str("host", host).
		Int("max_attempts", policy.MaxAttempts).
		Dur("interval", policy.Interval).
		Msg("waiting for host to come up")

	attempts, err := retry.Do(ctx, retry.Policy{
		Attempts: policy.MaxAttempts,
		Interval: policy.Interval,
	}, func(ctx context.Context, attempt int) error {
		if s.IsReachable(ctx, host, policy) {
			return nil
		}
		s.logger.Debug().Int("attempt", attempt).Str("host", host).Msg("host not reachable yet")
		return errNotAwake
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempts, ctxErr
		}
		return attempts, &TimeoutError{Host: host, Attempts: attempts, Interval: policy.Interval}
	}

	return attempts, nil
}

// EnsureAwake validates target, returns early when the host already answers,
// otherwise wakes it and waits for it to come up.
func (s *Impl) EnsureAwake(ctx context.Context, target models.WakeTarget, policy models.PollPolicy) (*models.WakeReport, error) {
	report := &models.WakeReport{}
	start := time.Now()

	fail := func(err error) (*models.WakeReport, error) {
		report.WaitDuration = time.Since(start)
		report.Error = err
		return report, err
	}

	if err := Validate(target); err != nil {
		return fail(err)
	}

	if s.IsReachable(ctx, target.Host, policy) {
		report.AlreadyAwake = true
		report.WaitDuration = time.Since(start)
		s.logger.Info().Str("host", target.Host).Msg("host already awake, not sending wake packet")
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := s.Wake(ctx, target); err != nil {
		return fail(err)
	}
	report.PacketSent = true

	attempts, err := s.WaitUntilAwake(ctx, target.Host, policy)
	report.Attempts = attempts
	if err != nil {
		return fail(err)
	}

	report.WaitDuration = time.Since(start)
	s.logger.Info().
		Str("host", target.Host).
		Int("attempts", attempts).
		Dur("duration", report.WaitDuration).
		Msg("host is awake")

	return report, nil
}

// Check validates target and probes it once. It never sends a wake packet.
func (s *Impl) Check(ctx context.Context, target models.WakeTarget, policy models.PollPolicy) (*models.WakeReport, error) {
	report := &models.WakeReport{}
	start := time.Now()

	if err := Validate(target); err != nil {
		report.Error = err
		return report, err
	}

	report.AlreadyAwake = s.IsReachable(ctx, target.Host, policy)
	report.WaitDuration = time.Since(start)

	if !report.AlreadyAwake {
		report.Error = fmt.Errorf("%s: %w", target.Host, ErrHostUnreachable)
		return report, report.Error
	}

	return report, nil
}
