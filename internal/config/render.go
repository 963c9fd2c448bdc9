package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fgeck/wakehost/internal/models"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Output formats for Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

const redacted = "(configured)"

// Summary is the printable view of a configuration. Secrets are redacted and
// durations are written the way they are configured.
type Summary struct {
	Target   TargetSummary    `json:"target" yaml:"target" toml:"target"`
	Poll     PollSummary      `json:"poll" yaml:"poll" toml:"poll"`
	SSH      *SSHSummary      `json:"ssh,omitempty" yaml:"ssh,omitempty" toml:"ssh,omitempty"`
	Telegram *TelegramSummary `json:"telegram,omitempty" yaml:"telegram,omitempty" toml:"telegram,omitempty"`
}

// TargetSummary describes the wake target.
type TargetSummary struct {
	MACAddress string `json:"mac_address" yaml:"mac_address" toml:"mac_address"`
	Host       string `json:"host" yaml:"host" toml:"host"`
	Broadcast  string `json:"broadcast" yaml:"broadcast" toml:"broadcast"`
	Port       int    `json:"port" yaml:"port" toml:"port"`
	Interface  string `json:"interface,omitempty" yaml:"interface,omitempty" toml:"interface,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
}

// PollSummary describes the polling policy.
type PollSummary struct {
	MaxAttempts  int    `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	Interval     string `json:"interval" yaml:"interval" toml:"interval"`
	ProbeTimeout string `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	Method       string `json:"method" yaml:"method" toml:"method"`
	Privileged   bool   `json:"privileged" yaml:"privileged" toml:"privileged"`
	TCPPort      int    `json:"tcp_port" yaml:"tcp_port" toml:"tcp_port"`
	Budget       string `json:"budget" yaml:"budget" toml:"budget"`
}

// SSHSummary describes the SSH readiness check.
type SSHSummary struct {
	Host     string `json:"host" yaml:"host" toml:"host"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	Username string `json:"username" yaml:"username" toml:"username"`
	KeyPath  string `json:"key_path" yaml:"key_path" toml:"key_path"`
	Attempts int    `json:"attempts" yaml:"attempts" toml:"attempts"`
	Interval string `json:"interval" yaml:"interval" toml:"interval"`
}

// TelegramSummary describes the notifier.
type TelegramSummary struct {
	ChatID   string `json:"chat_id" yaml:"chat_id" toml:"chat_id"`
	BotToken string `json:"bot_token" yaml:"bot_token" toml:"bot_token"`
}

// Summarize builds the printable view of cfg.
func Summarize(cfg *models.Config) Summary {
	s := Summary{
		Target: TargetSummary{
			MACAddress: cfg.Target.MACAddress,
			Host:       cfg.Target.Host,
			Broadcast:  cfg.Target.Broadcast,
			Port:       cfg.Target.Port,
			Interface:  cfg.Target.Interface,
		},
		Poll: PollSummary{
			MaxAttempts:  cfg.Poll.MaxAttempts,
			Interval:     cfg.Poll.Interval.String(),
			ProbeTimeout: cfg.Poll.ProbeTimeout.String(),
			Method:       cfg.Poll.Method,
			Privileged:   cfg.Poll.Privileged,
			TCPPort:      cfg.Poll.TCPPort,
			Budget:       cfg.Poll.Budget().String(),
		},
	}

	if cfg.Target.Password != "" {
		s.Target.Password = redacted
	}

	if cfg.SSH != nil {
		s.SSH = &SSHSummary{
			Host:     cfg.SSH.Host,
			Port:     cfg.SSH.Port,
			Username: cfg.SSH.Username,
			KeyPath:  cfg.SSH.KeyPath,
			Attempts: cfg.SSH.Attempts,
			Interval: cfg.SSH.Interval.String(),
		}
	}

	if cfg.Telegram != nil {
		s.Telegram = &TelegramSummary{
			ChatID:   cfg.Telegram.ChatID,
			BotToken: redacted,
		}
	}

	return s
}

// Render writes cfg in the given format.
func Render(cfg *models.Config, format string) ([]byte, error) {
	s := Summarize(cfg)

	switch format {
	case FormatText, "":
		return renderText(s), nil
	case FormatJSON:
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatTOML:
		return toml.Marshal(s)
	default:
		return nil, fmt.Errorf("unknown format %q (want text, json, yaml or toml)", format)
	}
}

func renderText(s Summary) []byte {
	var b bytes.Buffer
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "Target:")
	fmt.Fprintf(w, "  MAC Address:\t%s\n", s.Target.MACAddress)
	fmt.Fprintf(w, "  Host:\t%s\n", s.Target.Host)
	if s.Target.Interface != "" {
		fmt.Fprintf(w, "  Interface:\t%s (raw Ethernet)\n", s.Target.Interface)
	} else {
		fmt.Fprintf(w, "  Broadcast:\t%s\n", s.Target.Broadcast)
		fmt.Fprintf(w, "  Port:\t%d\n", s.Target.Port)
	}
	if s.Target.Password != "" {
		fmt.Fprintf(w, "  SecureOn:\t%s\n", s.Target.Password)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Polling:")
	fmt.Fprintf(w, "  Max attempts:\t%d\n", s.Poll.MaxAttempts)
	fmt.Fprintf(w, "  Interval:\t%s\n", s.Poll.Interval)
	fmt.Fprintf(w, "  Probe timeout:\t%s\n", s.Poll.ProbeTimeout)
	fmt.Fprintf(w, "  Method:\t%s\n", s.Poll.Method)
	if s.Poll.Method == models.ProbeTCP {
		fmt.Fprintf(w, "  TCP port:\t%d\n", s.Poll.TCPPort)
	}
	fmt.Fprintf(w, "  Max wait:\t%s\n", s.Poll.Budget)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Optional Features:")
	fmt.Fprintf(w, "  SSH check:\t%v\n", s.SSH != nil)
	fmt.Fprintf(w, "  Telegram:\t%v\n", s.Telegram != nil)

	if s.SSH != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SSH Check:")
		fmt.Fprintf(w, "  Host:\t%s\n", s.SSH.Host)
		fmt.Fprintf(w, "  Port:\t%d\n", s.SSH.Port)
		fmt.Fprintf(w, "  Username:\t%s\n", s.SSH.Username)
		fmt.Fprintf(w, "  Key:\t%s\n", s.SSH.KeyPath)
		fmt.Fprintf(w, "  Attempts:\t%d every %s\n", s.SSH.Attempts, s.SSH.Interval)
	}

	if s.Telegram != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Telegram:")
		fmt.Fprintf(w, "  Chat ID:\t%s\n", s.Telegram.ChatID)
		fmt.Fprintf(w, "  Bot Token:\t%s\n", s.Telegram.BotToken)
	}

	_ = w.Flush()
	return b.Bytes()
}
