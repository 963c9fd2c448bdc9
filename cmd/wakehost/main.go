// Package main is the entry point for wakehost.
package main

import (
	"errors"
	"os"

	"github.com/fgeck/wakehost/internal/config"
	"github.com/fgeck/wakehost/internal/services/runner"
	"github.com/fgeck/wakehost/internal/services/waker"
)

// Exit statuses.
const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
	exitWake    = 3
	exitTimeout = 4
	exitSSH     = 5
)

func main() {
	os.Exit(exitCode(Execute()))
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var invalid *waker.InvalidTargetError
	var wakeErr *waker.WakeError
	var timeout *waker.TimeoutError
	var sshErr *runner.SSHError

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &invalid), errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.As(err, &wakeErr):
		return exitWake
	case errors.As(err, &timeout):
		return exitTimeout
	case errors.As(err, &sshErr):
		return exitSSH
	default:
		return exitFailure
	}
}
