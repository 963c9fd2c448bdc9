package models

import (
	"net"
	"strconv"
	"time"
)

// Probe methods.
const (
	ProbeICMP = "icmp"
	ProbeExec = "exec"
	ProbeTCP  = "tcp"
)

// PlaceholderMAC is the hardware address shipped in defaults. It means "not configured".
const PlaceholderMAC = "00:00:00:00:00:00"

// WakeTarget describes the machine to wake and where to send the magic packet.
type WakeTarget struct {
	MACAddress string
	Host       string // probed for reachability
	Broadcast  string
	Port       int    // conventionally 7 or 9
	Interface  string // optional, sends a raw Ethernet frame instead of UDP
	Password   string // optional SecureOn password
}

// BroadcastAddr returns the broadcast address and port joined for dialing.
func (t WakeTarget) BroadcastAddr() string {
	return net.JoinHostPort(t.Broadcast, strconv.Itoa(t.Port))
}

// PollPolicy bounds how long wakehost waits for a target to come up.
type PollPolicy struct {
	MaxAttempts  int
	Interval     time.Duration
	ProbeTimeout time.Duration
	Method       string // icmp, exec or tcp
	Privileged   bool   // raw ICMP socket instead of unprivileged datagram socket
	TCPPort      int    // used by the tcp method
}

// Budget is the longest time spent sleeping between probes.
func (p PollPolicy) Budget() time.Duration {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(p.MaxAttempts-1) * p.Interval
}
