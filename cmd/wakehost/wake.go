package main

import (
	"github.com/fgeck/wakehost/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Wake the host and wait until it answers",
	Long: `Execute the wake workflow:
1. Probe the host; stop here if it already answers
2. Send a Wake-on-LAN magic packet
3. Probe until the host answers or poll.max_attempts is reached
4. Wait for an SSH login (if configured)
5. Send Telegram notification (if configured)`,
	RunE: runWake,
}

func runWake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log.Info().
		Str("config", configFile).
		Str("mac", cfg.Target.MACAddress).
		Str("host", cfg.Target.Host).
		Dur("max_wait", cfg.Poll.Budget()).
		Msg("configuration loaded")

	ctx, cancel := signalContext()
	defer cancel()

	runnerSvc := runner.New(log.Logger)
	report, err := runnerSvc.Run(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Int("attempts", report.Attempts).Msg("wake failed")
		return err
	}

	if report.AlreadyAwake {
		log.Info().Str("host", cfg.Target.Host).Msg("host was already awake")
		return nil
	}

	log.Info().
		Str("host", cfg.Target.Host).
		Int("attempts", report.Attempts).
		Dur("duration", report.WaitDuration).
		Msg("host woke up")
	return nil
}
