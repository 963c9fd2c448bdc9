// Package runner orchestrates a wake run: wake the host, wait for it, optionally
// confirm SSH logins and report the outcome to Telegram.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/fgeck/wakehost/internal/retry"
	"github.com/fgeck/wakehost/internal/services/ssh"
	"github.com/fgeck/wakehost/internal/services/telegram"
	"github.com/fgeck/wakehost/internal/services/waker"
	"github.com/rs/zerolog"
)

// Steps reported in failure notifications.
const (
	StepValidate = "validate"
	StepWake     = "wake"
	StepWait     = "wait"
	StepSSH      = "ssh"
)

const notifyTimeout = 30 * time.Second

// SSHError reports a host that answered probes but never accepted an SSH login.
type SSHError struct {
	Host     string
	Attempts int
	Err      error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("SSH on %s not ready after %d attempts: %v", e.Host, e.Attempts, e.Err)
}

func (e *SSHError) Unwrap() error {
	return e.Err
}

// Service defines the interface for the wake runner.
type Service interface {
	Run(ctx context.Context, cfg models.Config) (*models.WakeReport, error)
	Check(ctx context.Context, cfg models.Config) (*models.WakeReport, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	wakerSvc    waker.Service
	sshSvc      ssh.Service
	telegramSvc telegram.Service
	logger      zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		wakerSvc:    waker.New(logger),
		sshSvc:      ssh.New(logger),
		telegramSvc: telegram.New(logger),
		logger:      logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	wakerSvc waker.Service,
	sshSvc ssh.Service,
	telegramSvc telegram.Service,
) *Impl {
	return &Impl{
		wakerSvc:    wakerSvc,
		sshSvc:      sshSvc,
		telegramSvc: telegramSvc,
		logger:      logger,
	}
}

// Run executes the complete wake workflow.
func (s *Impl) Run(ctx context.Context, cfg models.Config) (*models.WakeReport, error) {
	startTime := time.Now()
	var report *models.WakeReport
	var sshReady bool
	var runErr error

	s.logger.Info().
		Str("mac", cfg.Target.MACAddress).
		Str("host", cfg.Target.Host).
		Str("method", cfg.Poll.Method).
		Msg("starting wake run")

	defer func() {
		if cfg.Telegram != nil {
			s.sendNotification(ctx, cfg, startTime, report, sshReady, runErr)
		}
	}()

	report, runErr = s.wakerSvc.EnsureAwake(ctx, cfg.Target, cfg.Poll)
	if report == nil {
		report = &models.WakeReport{Error: runErr}
	}
	if runErr != nil {
		return report, runErr
	}

	if cfg.SSH != nil {
		if err := s.waitForSSH(ctx, *cfg.SSH); err != nil {
			runErr = err
			report.Error = err
			return report, err
		}
		sshReady = true
	}

	s.logger.Info().
		Bool("already_awake", report.AlreadyAwake).
		Bool("packet_sent", report.PacketSent).
		Int("attempts", report.Attempts).
		Dur("duration", time.Since(startTime)).
		Msg("wake run completed successfully")

	return report, nil
}

// Check probes the target once without waking it.
func (s *Impl) Check(ctx context.Context, cfg models.Config) (*models.WakeReport, error) {
	s.logger.Debug().
		Str("host", cfg.Target.Host).
		Str("method", cfg.Poll.Method).
		Msg("checking host")

	return s.wakerSvc.Check(ctx, cfg.Target, cfg.Poll)
}

func (s *Impl) waitForSSH(ctx context.Context, cfg models.SSHCheckConfig) error {
	s.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Int("attempts", cfg.Attempts).
		Msg("waiting for SSH login")

	if err := ssh.LoadKey(&cfg); err != nil {
		return &SSHError{Host: cfg.Host, Err: err}
	}

	attempts, err := retry.Do(ctx, retry.Policy{
		Attempts: cfg.Attempts,
		Interval: cfg.Interval,
	}, func(ctx context.Context, attempt int) error {
		result, err := s.sshSvc.Check(ctx, cfg)
		if err != nil {
			return err
		}
		if result.Error == nil {
			return nil
		}
		if errors.Is(result.Error, ssh.ErrPrivateKey) {
			return retry.Permanent(result.Error)
		}

		s.logger.Debug().
			Err(result.Error).
			Int("attempt", attempt).
			Msg("SSH not ready yet")

		return result.Error
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &SSHError{Host: cfg.Host, Attempts: attempts, Err: err}
	}

	s.logger.Info().Int("attempts", attempts).Msg("SSH login ready")

	return nil
}

// failedStep names the step that produced err.
func failedStep(report *models.WakeReport, err error) string {
	var invalid *waker.InvalidTargetError
	var wakeErr *waker.WakeError
	var sshErr *SSHError

	switch {
	case errors.As(err, &invalid):
		return StepValidate
	case errors.As(err, &wakeErr):
		return StepWake
	case errors.As(err, &sshErr):
		return StepSSH
	case report != nil && report.PacketSent:
		return StepWait
	default:
		return StepWake
	}
}

func (s *Impl) sendNotification(
	ctx context.Context,
	cfg models.Config,
	startTime time.Time,
	report *models.WakeReport,
	sshReady bool,
	runErr error,
) {
	msg := models.TelegramMessage{
		Success:    runErr == nil,
		Host:       cfg.Target.Host,
		MACAddress: cfg.Target.MACAddress,
		StartTime:  startTime,
		Duration:   time.Since(startTime),
		SSHReady:   sshReady,
	}

	if report != nil {
		msg.AlreadyAwake = report.AlreadyAwake
		msg.PacketSent = report.PacketSent
		msg.Attempts = report.Attempts
	}

	if runErr != nil {
		msg.FailedStep = failedStep(report, runErr)
		msg.ErrorMessage = runErr.Error()
	}

	// A cancelled run is still reported.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	result, err := s.telegramSvc.SendNotification(notifyCtx, *cfg.Telegram, msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Info().Msg("Telegram notification sent")
}
