// Package ssh checks that a woken host accepts SSH logins.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// readyCommand is run on the remote host to prove a session works.
const readyCommand = "echo OK"

// ErrPrivateKey marks a key that cannot be read or parsed. Retrying will not help.
var ErrPrivateKey = errors.New("unusable private key")

// Service defines the interface for SSH operations.
type Service interface {
	Check(ctx context.Context, cfg models.SSHCheckConfig) (*models.SSHResult, error)
}

// SSHClient wraps ssh.Client for mocking.
type SSHClient interface {
	NewSession() (SSHSession, error)
	Close() error
}

// SSHSession wraps ssh.Session for mocking.
type SSHSession interface {
	CombinedOutput(cmd string) ([]byte, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient creates a new SSH client.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &defaultSSHClient{client: client}, nil
}

type defaultSSHClient struct {
	client *ssh.Client
}

func (c *defaultSSHClient) NewSession() (SSHSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSSHSession{session: session}, nil
}

func (c *defaultSSHClient) Close() error {
	return c.client.Close()
}

type defaultSSHSession struct {
	session *ssh.Session
}

func (s *defaultSSHSession) CombinedOutput(cmd string) ([]byte, error) {
	return s.session.CombinedOutput(cmd)
}

func (s *defaultSSHSession) Close() error {
	return s.session.Close()
}

// Impl implements the SSH Service interface.
type Impl struct {
	clientFactory ClientFactory
	logger        zerolog.Logger
}

// New creates a new SSH service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		clientFactory: &DefaultClientFactory{},
		logger:        logger,
	}
}

// NewWithClientFactory creates a new SSH service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, factory ClientFactory) *Impl {
	return &Impl{
		clientFactory: factory,
		logger:        logger,
	}
}

// LoadKey reads the private key from cfg.KeyPath unless one is already loaded.
func LoadKey(cfg *models.SSHCheckConfig) error {
	if len(cfg.PrivateKey) > 0 {
		return nil
	}
	if cfg.KeyPath == "" {
		return fmt.Errorf("%w: no private key provided", ErrPrivateKey)
	}

	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("%w: failed to read private key from %s: %w", ErrPrivateKey, cfg.KeyPath, err)
	}
	cfg.PrivateKey = key

	return nil
}

func (s *Impl) buildConfig(cfg models.SSHCheckConfig) (*ssh.ClientConfig, error) {
	if err := LoadKey(&cfg); err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse private key: %w", ErrPrivateKey, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // homelab environment
		Timeout:         timeout,
	}, nil
}

// Check logs in and runs a trivial command to verify the host accepts SSH sessions.
func (s *Impl) Check(ctx context.Context, cfg models.SSHCheckConfig) (*models.SSHResult, error) {
	result := &models.SSHResult{}

	s.logger.Debug().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("user", cfg.Username).
		Msg("checking SSH login")

	sshConfig, err := s.buildConfig(cfg)
	if err != nil {
		result.Error = err
		return result, nil
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	// ssh.Dial has no context; race it against ctx.
	clientChan := make(chan struct {
		client SSHClient
		err    error
	}, 1)

	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, sshConfig)
		clientChan <- struct {
			client SSHClient
			err    error
		}{client, err}
	}()

	var client SSHClient
	select {
	case <-ctx.Done():
		result.Error = ctx.Err()
		return result, nil
	case res := <-clientChan:
		if res.err != nil {
			result.Error = fmt.Errorf("failed to connect: %w", res.err)
			return result, nil
		}
		client = res.client
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		return result, nil
	}
	defer session.Close()

	output, err := session.CombinedOutput(readyCommand)
	result.Output = strings.TrimSpace(string(output))
	result.CommandRun = true

	if err != nil {
		result.Error = fmt.Errorf("ready command failed: %w", err)
		return result, nil
	}

	s.logger.Debug().Str("output", result.Output).Msg("SSH login succeeded")

	return result, nil
}
