package main

import (
	"github.com/fgeck/wakehost/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the host once without waking it",
	Long:  `Probe the configured host once. Exits 0 when it answers and 1 when it does not. No magic packet is sent.`,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	runnerSvc := runner.New(log.Logger)
	report, err := runnerSvc.Check(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Str("method", cfg.Poll.Method).Msg("host is not reachable")
		return err
	}

	log.Info().
		Str("host", cfg.Target.Host).
		Dur("duration", report.WaitDuration).
		Msg("host is reachable")
	return nil
}
