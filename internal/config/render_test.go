package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fullConfig() *models.Config {
	cfg := validConfig()
	cfg.Target.Password = "01:02:03:04:05:06"
	cfg.SSH = &models.SSHCheckConfig{
		Host:     "192.168.4.101",
		Port:     22,
		Username: "root",
		KeyPath:  "/root/.ssh/id_ed25519",
		Attempts: 6,
		Interval: 10 * time.Second,
	}
	cfg.Telegram = &models.TelegramConfig{BotToken: "123456:secret", ChatID: "42"}
	return cfg
}

func TestRender_JSON(t *testing.T) {
	out, err := Render(fullConfig(), FormatJSON)
	require.NoError(t, err)

	var s Summary
	require.NoError(t, json.Unmarshal(out, &s))
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", s.Target.MACAddress)
	assert.Equal(t, "10s", s.Poll.Interval)
	assert.Equal(t, "4m50s", s.Poll.Budget)
	require.NotNil(t, s.SSH)
	assert.Equal(t, 6, s.SSH.Attempts)
	require.NotNil(t, s.Telegram)
	assert.Equal(t, "42", s.Telegram.ChatID)

	assert.NotContains(t, string(out), "secret")
	assert.NotContains(t, string(out), "01:02:03:04:05:06")
}

func TestRender_YAML(t *testing.T) {
	out, err := Render(fullConfig(), FormatYAML)
	require.NoError(t, err)

	var s Summary
	require.NoError(t, yaml.Unmarshal(out, &s))
	assert.Equal(t, "192.168.4.101", s.Target.Host)
	assert.Equal(t, redacted, s.Target.Password)
	assert.Equal(t, redacted, s.Telegram.BotToken)
}

func TestRender_TOML(t *testing.T) {
	out, err := Render(validConfig(), FormatTOML)
	require.NoError(t, err)

	var s Summary
	require.NoError(t, toml.Unmarshal(out, &s))
	assert.Equal(t, 30, s.Poll.MaxAttempts)
	assert.Equal(t, models.ProbeICMP, s.Poll.Method)
	assert.Nil(t, s.SSH)
	assert.Nil(t, s.Telegram)
}

func TestRender_Text(t *testing.T) {
	out, err := Render(fullConfig(), FormatText)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "AA:BB:CC:DD:EE:FF")
	assert.Contains(t, text, "192.168.4.255")
	assert.Contains(t, text, "4m50s")
	assert.Contains(t, text, "SSH Check:")
	assert.Contains(t, text, "Telegram:")
	assert.NotContains(t, text, "secret")
}

func TestRender_TextRawInterface(t *testing.T) {
	cfg := validConfig()
	cfg.Target.Interface = "eth0"

	out, err := Render(cfg, "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "eth0 (raw Ethernet)")
	assert.NotContains(t, string(out), "Broadcast:")
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(validConfig(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
