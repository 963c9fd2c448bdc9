package models

import "time"

// WOLResult holds the result of sending a magic packet.
type WOLResult struct {
	PacketSent bool
	Transport  string // "udp" or "raw"
	Addr       string // broadcast address or interface name
	Bytes      int
	Error      error
}

// ProbeResult holds the result of a single reachability probe.
type ProbeResult struct {
	Reachable bool
	RTT       time.Duration
	Error     error
}

// WakeReport is the outcome of one wake or check invocation.
type WakeReport struct {
	AlreadyAwake bool
	PacketSent   bool
	Attempts     int // polling probes issued after the wake packet
	WaitDuration time.Duration
	Error        error
}
