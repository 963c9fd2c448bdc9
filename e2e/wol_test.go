//go:build e2e

package e2e

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/fgeck/wakehost/internal/services/probe"
	"github.com/fgeck/wakehost/internal/services/waker"
	"github.com/fgeck/wakehost/internal/services/wol"
	mdwol "github.com/mdlayher/wol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// listenUDP returns a loopback socket standing in for the broadcast domain.
func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readMagicPacket(t *testing.T, conn *net.UDPConn) *mdwol.MagicPacket {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	mp := new(mdwol.MagicPacket)
	require.NoError(t, mp.UnmarshalBinary(buf[:n]))
	return mp
}

func loopbackTarget(conn *net.UDPConn) models.WakeTarget {
	return models.WakeTarget{
		MACAddress: "AA:BB:CC:DD:EE:FF",
		Host:       "127.0.0.1",
		Broadcast:  "127.0.0.1",
		Port:       conn.LocalAddr().(*net.UDPAddr).Port,
	}
}

func TestWOL_SendUDP_E2E(t *testing.T) {
	conn := listenUDP(t)

	svc := wol.New(testLogger())
	result, err := svc.Send(context.Background(), loopbackTarget(conn))

	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.True(t, result.PacketSent)
	assert.Equal(t, 102, result.Bytes)

	mp := readMagicPacket(t, conn)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mp.Target.String())
	assert.Empty(t, mp.Password)
}

func TestWOL_SendUDPWithPassword_E2E(t *testing.T) {
	conn := listenUDP(t)
	target := loopbackTarget(conn)
	target.Password = "01:02:03:04:05:06"

	svc := wol.New(testLogger())
	result, err := svc.Send(context.Background(), target)

	require.NoError(t, err)
	require.Nil(t, result.Error)

	mp := readMagicPacket(t, conn)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, mp.Password)
}

// unreachableProber never sees the host, whatever the local network answers.
type unreachableProber struct {
	calls int
}

func (p *unreachableProber) Probe(ctx context.Context, host string, policy models.PollPolicy) (*models.ProbeResult, error) {
	p.calls++
	return &models.ProbeResult{}, nil
}

func TestWaker_WakesAndTimesOut_E2E(t *testing.T) {
	conn := listenUDP(t)
	prober := &unreachableProber{}

	svc := waker.NewWithServices(testLogger(), wol.New(testLogger()), prober)
	report, err := svc.EnsureAwake(context.Background(), loopbackTarget(conn), models.PollPolicy{
		MaxAttempts:  2,
		Interval:     50 * time.Millisecond,
		ProbeTimeout: 100 * time.Millisecond,
		Method:       models.ProbeTCP,
		TCPPort:      22,
	})

	var timeout *waker.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.True(t, report.PacketSent)
	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, 3, prober.calls)

	mp := readMagicPacket(t, conn)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mp.Target.String())
}

func TestWaker_AlreadyAwake_E2E(t *testing.T) {
	conn := listenUDP(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	svc := waker.New(testLogger())
	report, err := svc.EnsureAwake(context.Background(), loopbackTarget(conn), models.PollPolicy{
		MaxAttempts:  2,
		Interval:     50 * time.Millisecond,
		ProbeTimeout: time.Second,
		Method:       models.ProbeTCP,
		TCPPort:      ln.Addr().(*net.TCPAddr).Port,
	})

	require.NoError(t, err)
	assert.True(t, report.AlreadyAwake)
	assert.False(t, report.PacketSent)

	// Nothing may arrive on the wake port.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = conn.ReadFromUDP(make([]byte, 256))
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestProbe_ICMPLoopback_E2E(t *testing.T) {
	svc := probe.New(testLogger())
	result, err := svc.Probe(context.Background(), "127.0.0.1", models.PollPolicy{
		Method:       models.ProbeICMP,
		ProbeTimeout: time.Second,
	})

	require.NoError(t, err)
	if errors.Is(result.Error, syscall.EACCES) || errors.Is(result.Error, syscall.EPERM) {
		t.Skip("unprivileged ICMP sockets not permitted (net.ipv4.ping_group_range)")
	}
	require.Nil(t, result.Error)
	assert.True(t, result.Reachable)
}

func TestProbe_ExecLoopback_E2E(t *testing.T) {
	svc := probe.New(testLogger())
	result, err := svc.Probe(context.Background(), "127.0.0.1", models.PollPolicy{
		Method:       models.ProbeExec,
		ProbeTimeout: time.Second,
	})

	require.NoError(t, err)
	if result.Error != nil {
		t.Skipf("ping not usable here: %v", result.Error)
	}
	assert.True(t, result.Reachable)
}

// RealWOL tests - only run if explicitly configured
func TestRealWOL_E2E(t *testing.T) {
	mac := os.Getenv("TEST_WOL_MAC")
	host := os.Getenv("TEST_WOL_HOST")
	if mac == "" || host == "" {
		t.Skip("TEST_WOL_MAC or TEST_WOL_HOST not set")
	}

	broadcast := os.Getenv("TEST_WOL_BROADCAST")
	if broadcast == "" {
		broadcast = "255.255.255.255"
	}

	svc := waker.New(testLogger())
	report, err := svc.EnsureAwake(context.Background(), models.WakeTarget{
		MACAddress: mac,
		Host:       host,
		Broadcast:  broadcast,
		Port:       9,
	}, models.PollPolicy{
		MaxAttempts:  30,
		Interval:     10 * time.Second,
		ProbeTimeout: 2 * time.Second,
		Method:       models.ProbeExec,
	})

	require.NoError(t, err)
	assert.Nil(t, report.Error)
}
