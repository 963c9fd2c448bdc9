package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a wake notification.
type TelegramMessage struct {
	Success    bool
	Host       string
	MACAddress string
	StartTime  time.Time
	Duration   time.Duration

	// Wake stats.
	AlreadyAwake bool
	PacketSent   bool
	Attempts     int
	SSHReady     bool

	// Error info (if failed).
	ErrorMessage string
	FailedStep   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
