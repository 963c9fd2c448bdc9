// Package telegram reports wake runs to a Telegram chat through the Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/fgeck/wakehost/internal/retry"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL   = "https://api.telegram.org"
	defaultAttempts  = 3
	defaultRetryWait = 2 * time.Second
)

// Service defines the interface for Telegram notification operations.
type Service interface {
	SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram API returned status %d: %s", e.StatusCode, e.Description)
}

// temporary reports whether sending again may succeed.
func (e *APIError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Impl implements the Telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
	attempts   int
	retryWait  time.Duration
}

// New creates a new Telegram service. Rate limits and server errors are retried.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		baseURL:    defaultBaseURL,
		attempts:   defaultAttempts,
		retryWait:  defaultRetryWait,
	}
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for
// testing). It sends once; see WithRetry.
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		attempts:   1,
	}
}

// WithRetry sets how often a temporary failure is retried.
func (s *Impl) WithRetry(attempts int, wait time.Duration) *Impl {
	s.attempts = attempts
	s.retryWait = wait
	return s
}

// sendMessageRequest is the body of a sendMessage call.
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendNotification sends a wake notification via Telegram.
func (s *Impl) SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) (*models.TelegramResult, error) {
	result := &models.TelegramResult{}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                cfg.ChatID,
		Text:                  s.formatMessage(msg),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		result.Error = fmt.Errorf("failed to marshal request: %w", err)
		return result, nil
	}

	s.logger.Info().
		Str("chat_id", cfg.ChatID).
		Bool("success", msg.Success).
		Msg("sending Telegram notification")

	endpoint := s.baseURL + "/bot" + cfg.BotToken + "/sendMessage"

	attempts, err := retry.Do(ctx, retry.Policy{
		Attempts: s.attempts,
		Interval: s.retryWait,
	}, func(ctx context.Context, attempt int) error {
		err := s.post(ctx, endpoint, body)

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.temporary() {
			return retry.Permanent(err)
		}
		if err != nil {
			s.logger.Debug().Err(err).Int("attempt", attempt).Msg("Telegram request failed")
		}
		return err
	})
	if err != nil {
		result.Error = err
		return result, nil
	}

	result.MessageSent = true
	s.logger.Info().Int("attempts", attempts).Msg("Telegram notification sent")

	return result, nil
}

// post sends one sendMessage request. The bot token never appears in returned errors.
func (s *Impl) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", redactURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", redactURL(err))
	}
	defer func() { _ = resp.Body.Close() }()

	var reply apiResponse
	// Proxies may answer with HTML; the status code still tells the story.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&reply)

	if resp.StatusCode != http.StatusOK || !reply.OK {
		return &APIError{StatusCode: resp.StatusCode, Description: reply.Description}
	}

	return nil
}

func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = "(redacted)"
	}
	return err
}

// formatMessage renders msg as Telegram HTML.
func (s *Impl) formatMessage(msg models.TelegramMessage) string {
	var b strings.Builder

	title := "✅ <b>Host Awake</b>"
	if !msg.Success {
		title = "❌ <b>Wake Failed</b>"
	}
	fmt.Fprintf(&b, "%s\n\n", title)

	fmt.Fprintf(&b, "🖥 <b>Host:</b> %s\n", escapeHTML(msg.Host))
	fmt.Fprintf(&b, "🔌 <b>MAC:</b> <code>%s</code>\n", escapeHTML(msg.MACAddress))
	fmt.Fprintf(&b, "⏰ <b>Started:</b> %s\n", msg.StartTime.Format(time.DateTime))
	fmt.Fprintf(&b, "⏱ <b>Duration:</b> %s\n", msg.Duration.Round(time.Second))

	if !msg.Success {
		b.WriteString("\n<b>⚠️ Error Details:</b>\n")
		fmt.Fprintf(&b, "  • Failed step: %s\n", escapeHTML(msg.FailedStep))
		if msg.PacketSent {
			fmt.Fprintf(&b, "  • Probes after wake: %d\n", msg.Attempts)
		}
		fmt.Fprintf(&b, "  • Error: <code>%s</code>\n", escapeHTML(msg.ErrorMessage))
		return b.String()
	}

	b.WriteString("\n<b>📊 Details:</b>\n")
	switch {
	case msg.AlreadyAwake:
		b.WriteString("  • Already awake, no packet sent\n")
	default:
		fmt.Fprintf(&b, "  • Magic packet sent: %s\n", yesNo(msg.PacketSent))
		fmt.Fprintf(&b, "  • Probes until awake: %d\n", msg.Attempts)
	}
	if msg.SSHReady {
		b.WriteString("  • SSH login: ok\n")
	}

	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// htmlEscaper covers the characters Telegram's HTML parse mode requires escaped.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
