package main

import (
	"fmt"

	"github.com/fgeck/wakehost/internal/config"
	"github.com/spf13/cobra"
)

var outputFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	Long: `Load the configuration from file, environment and flags, validate it and
print the result without sending any packets. Secrets are redacted.`,
	RunE: showConfig,
}

func init() {
	configCmd.Flags().StringVarP(&outputFormat, "format", "f", config.FormatText, "output format: text, json, yaml or toml")
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, err := config.Render(cfg, outputFormat)
	if err != nil {
		return err
	}

	if outputFormat == config.FormatText {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid!")
		fmt.Fprintln(cmd.OutOrStdout())
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
