package models

import "time"

// SSHCheckConfig holds the optional SSH readiness check configuration.
type SSHCheckConfig struct {
	Host       string
	Port       int
	Username   string
	PrivateKey []byte // loaded from file path
	KeyPath    string // path to key file
	Attempts   int
	Interval   time.Duration
	Timeout    time.Duration
}

// SSHResult holds the result of an SSH operation.
type SSHResult struct {
	CommandRun bool
	Output     string
	Error      error
}
