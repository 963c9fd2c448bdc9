// Package wol provides Wake-on-LAN operations.
package wol

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// Transports.
const (
	TransportUDP = "udp"
	TransportRaw = "raw"
)

// ErrInvalidPassword is returned for SecureOn passwords that are neither 4 nor 6 bytes.
var ErrInvalidPassword = errors.New("SecureOn password must be 4 bytes (a.b.c.d) or 6 bytes (aa:bb:cc:dd:ee:ff)")

// Service defines the interface for Wake-on-LAN operations.
type Service interface {
	Send(ctx context.Context, target models.WakeTarget) (*models.WOLResult, error)
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(addr string, mac net.HardwareAddr, password []byte) error
	WakeRaw(iface string, mac net.HardwareAddr, password []byte) error
}

// DefaultClient is the default implementation using mdlayher/wol.
type DefaultClient struct{}

// Wake sends a magic packet as a UDP datagram to addr.
func (c *DefaultClient) Wake(addr string, mac net.HardwareAddr, password []byte) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if len(password) > 0 {
		err = client.WakePassword(addr, mac, password)
	} else {
		err = client.Wake(addr, mac)
	}
	if err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}

	return nil
}

// WakeRaw sends a magic packet as an Ethernet frame on the named interface.
func (c *DefaultClient) WakeRaw(iface string, mac net.HardwareAddr, password []byte) error {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return fmt.Errorf("failed to find interface %s: %w", iface, err)
	}

	client, err := wol.NewRawClient(ifi)
	if err != nil {
		return fmt.Errorf("failed to create raw WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if len(password) > 0 {
		err = client.WakePassword(mac, password)
	} else {
		err = client.Wake(mac)
	}
	if err != nil {
		return fmt.Errorf("failed to send WOL frame: %w", err)
	}

	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	wolClient Client
	logger    zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		wolClient: &DefaultClient{},
		logger:    logger,
	}
}

// NewWithClient creates a new WOL service with a custom client (for testing).
func NewWithClient(logger zerolog.Logger, wolClient Client) *Impl {
	return &Impl{
		wolClient: wolClient,
		logger:    logger,
	}
}

// Send builds the magic packet for target and sends it once.
func (s *Impl) Send(ctx context.Context, target models.WakeTarget) (*models.WOLResult, error) {
	result := &models.WOLResult{}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result, nil
	}

	mac, err := net.ParseMAC(target.MACAddress)
	if err != nil {
		result.Error = fmt.Errorf("invalid MAC address %q: %w", target.MACAddress, err)
		return result, nil
	}

	password, err := ParsePassword(target.Password)
	if err != nil {
		result.Error = err
		return result, nil
	}

	packet, err := MagicPacket(mac, password)
	if err != nil {
		result.Error = err
		return result, nil
	}
	result.Bytes = len(packet)

	if target.Interface != "" {
		result.Transport = TransportRaw
		result.Addr = target.Interface
		s.logger.Info().
			Str("mac", mac.String()).
			Str("interface", target.Interface).
			Msg("sending WOL frame")

		if err := s.wolClient.WakeRaw(target.Interface, mac, password); err != nil {
			result.Error = err
			return result, nil //nolint:nilerr // error is stored in result
		}
	} else {
		result.Transport = TransportUDP
		result.Addr = target.BroadcastAddr()
		s.logger.Info().
			Str("mac", mac.String()).
			Str("broadcast", result.Addr).
			Msg("sending WOL packet")

		if err := s.wolClient.Wake(result.Addr, mac, password); err != nil {
			result.Error = err
			return result, nil //nolint:nilerr // error is stored in result
		}
	}

	result.PacketSent = true
	s.logger.Debug().
		Str("transport", result.Transport).
		Int("bytes", result.Bytes).
		Msg("WOL packet sent successfully")

	return result, nil
}

// MagicPacket returns the wire form of a magic packet: six 0xFF bytes, sixteen
// copies of mac and the optional SecureOn password.
func MagicPacket(mac net.HardwareAddr, password []byte) ([]byte, error) {
	p := &wol.MagicPacket{
		Target:   mac,
		Password: password,
	}

	b, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to build magic packet: %w", err)
	}

	return b, nil
}

// ParsePassword parses a SecureOn password written as a hardware address or an IPv4 address.
func ParsePassword(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}

	if hw, err := net.ParseMAC(s); err == nil && len(hw) == 6 {
		return []byte(hw), nil
	}

	if ip := net.ParseIP(s).To4(); ip != nil {
		return []byte(ip), nil
	}

	return nil, ErrInvalidPassword
}
