package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fgeck/wakehost/internal/config"
	"github.com/fgeck/wakehost/internal/models"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "wakehost",
	Short: "Wake a LAN host and wait until it answers",
	Long: `wakehost makes sure a machine on the local network is awake:
  - probes the host and does nothing if it already answers
  - otherwise sends a Wake-on-LAN magic packet
  - polls the host until it answers or the attempts run out
  - optionally waits for SSH logins and reports to Telegram

Without a subcommand wakehost runs "wake". Use it before jobs that need the
host, e.g. from cron or a systemd unit.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	RunE:         runWake,
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (yaml, toml or json)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	flags.BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	// Overrides for config keys; see config.Parser.BindFlags.
	flags.String("mac", "", "hardware address of the host to wake")
	flags.String("host", "", "hostname or IP address to probe")
	flags.String("broadcast", "", "broadcast address for the magic packet")
	flags.Int("port", 0, "UDP port for the magic packet (7 or 9)")
	flags.String("interface", "", "send a raw Ethernet frame on this interface instead of UDP")
	flags.Int("attempts", 0, "maximum number of probes after waking")
	flags.Duration("interval", 0, "pause between probes")
	flags.Duration("probe-timeout", 0, "timeout of a single probe")
	flags.String("method", "", "probe method: icmp, exec or tcp")

	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
			NoColor:    !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()),
		}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig reads the config file (if any), environment and flags, then
// validates the result.
func loadConfig(cmd *cobra.Command) (*models.Config, error) {
	parser := config.NewParser()
	if err := parser.BindFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	cfg, err := parser.Load(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
