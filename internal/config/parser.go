// Package config provides configuration loading for wakehost.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/fgeck/wakehost/internal/services/waker"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes environment overrides, e.g. WAKEHOST_TARGET_MAC_ADDRESS.
const EnvPrefix = "WAKEHOST"

// Defaults.
const (
	DefaultBroadcast    = "255.255.255.255"
	DefaultPort         = 9
	DefaultMaxAttempts  = 30
	DefaultInterval     = 10 * time.Second
	DefaultProbeTimeout = 2 * time.Second
	DefaultTCPPort      = 22

	DefaultSSHPort     = 22
	DefaultSSHUser     = "root"
	DefaultSSHAttempts = 6
	DefaultSSHInterval = 10 * time.Second
	DefaultSSHTimeout  = 10 * time.Second
)

// maxSeconds is the largest bare number of seconds a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"mac":           "target.mac_address",
	"host":          "target.host",
	"broadcast":     "target.broadcast",
	"port":          "target.port",
	"interface":     "target.interface",
	"attempts":      "poll.max_attempts",
	"interval":      "poll.interval",
	"probe-timeout": "poll.probe_timeout",
	"method":        "poll.method",
}

// Parser handles configuration parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("target.mac_address", models.PlaceholderMAC)
	v.SetDefault("target.broadcast", DefaultBroadcast)
	v.SetDefault("target.port", DefaultPort)
	v.SetDefault("poll.max_attempts", DefaultMaxAttempts)
	v.SetDefault("poll.interval", DefaultInterval.String())
	v.SetDefault("poll.probe_timeout", DefaultProbeTimeout.String())
	v.SetDefault("poll.method", models.ProbeICMP)
	v.SetDefault("poll.privileged", false)
	v.SetDefault("poll.tcp_port", DefaultTCPPort)

	return &Parser{v: v}
}

// BindFlags makes the known flags in fs override file and environment values.
func (p *Parser) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := p.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration file at path, or only defaults, environment
// and flags when path is empty.
func (p *Parser) Load(path string) (*models.Config, error) {
	if path == "" {
		return p.parse()
	}
	return p.LoadFile(path)
}

// LoadFile loads configuration from a file path. The format follows the
// file extension (yaml, yml, toml, json).
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	p.v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		p.v.SetConfigType(ext)
	}

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: reading config file: %w", ErrInvalid, err)
	}

	return p.parse()
}

// LoadReader loads YAML configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("%w: reading config: %w", ErrInvalid, err)
	}

	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{}

	cfg.Target = models.WakeTarget{
		MACAddress: strings.TrimSpace(p.v.GetString("target.mac_address")),
		Host:       strings.TrimSpace(p.v.GetString("target.host")),
		Broadcast:  strings.TrimSpace(p.v.GetString("target.broadcast")),
		Port:       p.v.GetInt("target.port"),
		Interface:  p.v.GetString("target.interface"),
		Password:   p.expandEnv(p.v.GetString("target.password")),
	}

	interval, err := p.durationOrSeconds("poll.interval")
	if err != nil {
		return nil, err
	}
	probeTimeout, err := p.durationOrSeconds("poll.probe_timeout")
	if err != nil {
		return nil, err
	}

	cfg.Poll = models.PollPolicy{
		MaxAttempts:  p.v.GetInt("poll.max_attempts"),
		Interval:     interval,
		ProbeTimeout: probeTimeout,
		Method:       strings.ToLower(p.v.GetString("poll.method")),
		Privileged:   p.v.GetBool("poll.privileged"),
		TCPPort:      p.v.GetInt("poll.tcp_port"),
	}

	// Parse optional SSH readiness check.
	if p.sectionSet("ssh", "key_path") { //nolint:nestif // config parsing with defaults
		sshInterval, err := p.durationOrSeconds("ssh.interval")
		if err != nil {
			return nil, err
		}
		sshTimeout, err := p.durationOrSeconds("ssh.timeout")
		if err != nil {
			return nil, err
		}

		cfg.SSH = &models.SSHCheckConfig{
			Host:     p.v.GetString("ssh.host"),
			Port:     p.v.GetInt("ssh.port"),
			Username: p.v.GetString("ssh.username"),
			KeyPath:  ExpandPath(p.expandEnv(p.v.GetString("ssh.key_path"))),
			Attempts: p.v.GetInt("ssh.attempts"),
			Interval: sshInterval,
			Timeout:  sshTimeout,
		}

		if cfg.SSH.Host == "" {
			cfg.SSH.Host = cfg.Target.Host
		}
		if cfg.SSH.Port == 0 {
			cfg.SSH.Port = DefaultSSHPort
		}
		if cfg.SSH.Username == "" {
			cfg.SSH.Username = DefaultSSHUser
		}
		if cfg.SSH.KeyPath == "" {
			return nil, fmt.Errorf("%w: ssh.key_path is required when ssh is configured", ErrInvalid)
		}
		if cfg.SSH.Attempts == 0 {
			cfg.SSH.Attempts = DefaultSSHAttempts
		}
		if cfg.SSH.Interval == 0 {
			cfg.SSH.Interval = DefaultSSHInterval
		}
		if cfg.SSH.Timeout == 0 {
			cfg.SSH.Timeout = DefaultSSHTimeout
		}
	}

	// Parse optional Telegram config.
	if p.sectionSet("telegram", "bot_token", "chat_id") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("%w: telegram.bot_token is required when telegram is configured", ErrInvalid)
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("%w: telegram.chat_id is required when telegram is configured", ErrInvalid)
		}
	}

	return cfg, nil
}

// durationOrSeconds reads a duration; a bare number is taken as seconds.
func (p *Parser) durationOrSeconds(key string) (time.Duration, error) {
	raw := strings.TrimSpace(p.v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(secs) || math.Abs(secs) >= maxSeconds {
			return 0, fmt.Errorf("%w: %s: %s seconds is out of range", ErrInvalid, key, raw)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalid, key, err)
	}

	return d, nil
}

// sectionSet reports whether an optional section is configured. Environment
// variables only set leaf keys, so the section's required keys are checked too.
func (p *Parser) sectionSet(section string, required ...string) bool {
	if p.v.IsSet(section) {
		return true
	}
	for _, key := range required {
		if p.v.IsSet(section + "." + key) {
			return true
		}
	}
	return false
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalid)
	}

	if err := waker.Validate(cfg.Target); err != nil {
		return err
	}

	if cfg.Poll.MaxAttempts < 1 {
		return fmt.Errorf("%w: poll.max_attempts must be at least 1", ErrInvalid)
	}
	if cfg.Poll.Interval < 0 {
		return fmt.Errorf("%w: poll.interval must not be negative", ErrInvalid)
	}
	if cfg.Poll.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: poll.probe_timeout must be positive", ErrInvalid)
	}

	switch cfg.Poll.Method {
	case models.ProbeICMP, models.ProbeExec, models.ProbeTCP:
	default:
		return fmt.Errorf("%w: poll.method must be one of: icmp, exec, tcp", ErrInvalid)
	}

	if cfg.Poll.Method == models.ProbeTCP && (cfg.Poll.TCPPort < 1 || cfg.Poll.TCPPort > 65535) {
		return fmt.Errorf("%w: poll.tcp_port must be between 1 and 65535", ErrInvalid)
	}

	if cfg.SSH != nil {
		if cfg.SSH.Attempts < 1 {
			return fmt.Errorf("%w: ssh.attempts must be at least 1", ErrInvalid)
		}
		if cfg.SSH.Interval < 0 {
			return fmt.Errorf("%w: ssh.interval must not be negative", ErrInvalid)
		}
		if cfg.SSH.Timeout < 0 {
			return fmt.Errorf("%w: ssh.timeout must not be negative", ErrInvalid)
		}
	}

	return nil
}
