package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// ErrNoReply is returned when no echo reply arrives before the timeout.
var ErrNoReply = errors.New("no echo reply")

// protocolICMP is the IANA protocol number for ICMP over IPv4.
const protocolICMP = 1

var echoSeq atomic.Uint32

// ICMPPinger sends echo requests with golang.org/x/net/icmp.
type ICMPPinger struct{}

// Ping sends one echo request to dst. Without privileged it uses an
// unprivileged datagram socket (net.ipv4.ping_group_range on Linux), where the
// kernel rewrites the echo identifier.
func (p *ICMPPinger) Ping(ctx context.Context, dst *net.IPAddr, timeout time.Duration, privileged bool) (time.Duration, error) {
	network := "udp4"
	if privileged {
		network = "ip4:icmp"
	}

	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return 0, fmt.Errorf("failed to open ICMP socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	id := os.Getpid() & 0xffff
	seq := int(echoSeq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("wakehost"),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal echo request: %w", err)
	}

	var peer net.Addr = dst
	if !privileged {
		peer = &net.UDPAddr{IP: dst.IP}
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("failed to set read deadline: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, peer); err != nil {
		return 0, fmt.Errorf("failed to send echo request: %w", err)
	}

	rb := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n, from, err := conn.ReadFrom(rb)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, ErrNoReply
			}
			return 0, fmt.Errorf("failed to read echo reply: %w", err)
		}

		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil || rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		if privileged && echo.ID != id {
			continue
		}
		if !sameIP(from, dst.IP) {
			continue
		}

		return time.Since(start), nil
	}
}

func sameIP(addr net.Addr, ip net.IP) bool {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	case *net.IPAddr:
		return a.IP.Equal(ip)
	default:
		return false
	}
}
