// Package probe checks whether a host answers on the network.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/rs/zerolog"
)

// DefaultTimeout is used when the policy does not set a probe timeout.
const DefaultTimeout = 2 * time.Second

// execSlack lets ping report "no reply" itself before the probe deadline kills it.
const execSlack = 250 * time.Millisecond

// Service defines the interface for reachability probes.
type Service interface {
	Probe(ctx context.Context, host string, policy models.PollPolicy) (*models.ProbeResult, error)
}

// Pinger sends a single ICMP echo request and waits for the reply.
type Pinger interface {
	Ping(ctx context.Context, dst *net.IPAddr, timeout time.Duration, privileged bool) (time.Duration, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Dialer allows mocking TCP connects.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Impl implements the probe Service interface.
type Impl struct {
	pinger   Pinger
	executor CommandExecutor
	dialer   Dialer
	logger   zerolog.Logger
}

// New creates a new probe service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		pinger:   &ICMPPinger{},
		executor: &DefaultExecutor{},
		dialer:   &net.Dialer{},
		logger:   logger,
	}
}

// NewWithClients creates a new probe service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, pinger Pinger, executor CommandExecutor, dialer Dialer) *Impl {
	return &Impl{
		pinger:   pinger,
		executor: executor,
		dialer:   dialer,
		logger:   logger,
	}
}

// Probe sends one probe to host. It never retries; a host that does not answer
// within the timeout is reported as not reachable without an error.
func (s *Impl) Probe(ctx context.Context, host string, policy models.PollPolicy) (*models.ProbeResult, error) {
	timeout := policy.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	method := policy.Method
	if method == "" {
		method = models.ProbeICMP
	}

	s.logger.Debug().
		Str("host", host).
		Str("method", method).
		Dur("timeout", timeout).
		Msg("probing host")

	// The deadline covers name resolution as well as the echo or connect.
	deadline := timeout
	if method == models.ProbeExec {
		deadline += execSlack
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	switch method {
	case models.ProbeICMP:
		return s.probeICMP(ctx, host, timeout, policy.Privileged), nil
	case models.ProbeExec:
		return s.probeExec(ctx, host, timeout), nil
	case models.ProbeTCP:
		return s.probeTCP(ctx, host, policy.TCPPort), nil
	default:
		return nil, fmt.Errorf("unknown probe method %q", method)
	}
}

func (s *Impl) probeICMP(ctx context.Context, host string, timeout time.Duration, privileged bool) *models.ProbeResult {
	result := &models.ProbeResult{}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		result.Error = fmt.Errorf("failed to resolve %s: %w", host, err)
		return result
	}
	if len(ips) == 0 {
		result.Error = fmt.Errorf("no IPv4 address for %s", host)
		return result
	}

	rtt, err := s.pinger.Ping(ctx, &net.IPAddr{IP: ips[0]}, timeout, privileged)
	switch {
	case err == nil:
		result.Reachable = true
		result.RTT = rtt
	case errors.Is(err, ErrNoReply):
		s.logger.Debug().Str("host", host).Msg("no echo reply")
	default:
		result.Error = err
	}

	return result
}

func (s *Impl) probeExec(ctx context.Context, host string, timeout time.Duration) *models.ProbeResult {
	result := &models.ProbeResult{}

	// ping -W takes whole seconds.
	secs := int(math.Ceil(timeout.Seconds()))
	if secs < 1 {
		secs = 1
	}

	start := time.Now()
	output, err := s.executor.Execute(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), host)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug().Str("host", host).Dur("timeout", timeout).Msg("ping timed out")
			return result
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.logger.Debug().
				Int("exit_code", exitErr.ExitCode()).
				Str("output", string(output)).
				Msg("ping reported host down")
			return result
		}
		result.Error = fmt.Errorf("failed to run ping: %w", err)
		return result
	}

	result.Reachable = true
	result.RTT = time.Since(start)
	return result
}

func (s *Impl) probeTCP(ctx context.Context, host string, port int) *models.ProbeResult {
	result := &models.ProbeResult{}

	if port == 0 {
		port = 22
	}

	start := time.Now()
	conn, err := s.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		// A refused connection still means something answered with a RST.
		if errors.Is(err, syscall.ECONNREFUSED) {
			result.Reachable = true
			result.RTT = time.Since(start)
			return result
		}
		s.logger.Debug().Err(err).Str("host", host).Int("port", port).Msg("tcp connect failed")
		return result
	}
	_ = conn.Close()

	result.Reachable = true
	result.RTT = time.Since(start)
	return result
}
