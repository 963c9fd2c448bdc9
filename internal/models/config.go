// Package models contains the data structures used throughout wakehost.
package models

// Config holds the complete configuration for a wakehost invocation.
type Config struct {
	Target   WakeTarget
	Poll     PollPolicy
	SSH      *SSHCheckConfig // nil if not configured
	Telegram *TelegramConfig // nil if not configured
}
