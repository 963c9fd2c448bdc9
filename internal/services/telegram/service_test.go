package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
	}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.TelegramConfig {
	return models.TelegramConfig{
		BotToken: "123456:ABC-DEF",
		ChatID:   "-100123456789",
	}
}

func TestSendNotification_Success(t *testing.T) {
	var capturedRequest *http.Request
	var capturedBody sendMessageRequest

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			capturedRequest = req
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &capturedBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("{\"ok\":true}")),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Success:    true,
		Host:       "192.168.4.101",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		StartTime:  time.Now().Add(-2 * time.Minute),
		Duration:   2 * time.Minute,
		PacketSent: true,
		Attempts:   7,
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)

	// Verify request
	assert.Equal(t, http.MethodPost, capturedRequest.Method)
	assert.Contains(t, capturedRequest.URL.String(), "/bot123456:ABC-DEF/sendMessage")
	assert.Equal(t, "application/json", capturedRequest.Header.Get("Content-Type"))

	// Verify body
	assert.Equal(t, "-100123456789", capturedBody.ChatID)
	assert.Equal(t, "HTML", capturedBody.ParseMode)
	assert.Contains(t, capturedBody.Text, "Host Awake")
}

func TestSendNotification_FailureMessage(t *testing.T) {
	var capturedBody sendMessageRequest

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &capturedBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Success:      false,
		Host:         "192.168.4.101",
		MACAddress:   "AA:BB:CC:DD:EE:FF",
		StartTime:    time.Now(),
		Duration:     1 * time.Minute,
		FailedStep:   "wake",
		ErrorMessage: "failed to send wake packet to 192.168.4.255:9: permission denied",
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)

	// Verify message content
	assert.Contains(t, capturedBody.Text, "Wake Failed")
	assert.Contains(t, capturedBody.Text, "Failed step: wake")
	assert.Contains(t, capturedBody.Text, "permission denied")
}

func TestSendNotification_HTTPError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("network error")
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Success: true,
		Host:    "nas.lan",
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to send request")
}

func TestSendNotification_APIError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(strings.NewReader("{\"ok\":false}")),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Success: true,
		Host:    "nas.lan",
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "status 400")
}

func TestFormatMessage_WokenUp(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Success:    true,
		Host:       "nas.lan",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		StartTime:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Duration:   1*time.Minute + 10*time.Second,
		PacketSent: true,
		Attempts:   7,
		SSHReady:   true,
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Host Awake")
	assert.Contains(t, result, "nas.lan")
	assert.Contains(t, result, "AA:BB:CC:DD:EE:FF")
	assert.Contains(t, result, "2024-01-15 10:30:00")
	assert.Contains(t, result, "1m10s")
	assert.Contains(t, result, "Magic packet sent: yes")
	assert.Contains(t, result, "Probes until awake: 7")
	assert.Contains(t, result, "SSH login: ok")
}

func TestFormatMessage_AlreadyAwake(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Success:      true,
		Host:         "nas.lan",
		AlreadyAwake: true,
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Already awake, no packet sent")
	assert.NotContains(t, result, "Magic packet sent")
}

func TestFormatMessage_Failure(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Success:      false,
		Host:         "nas.lan",
		StartTime:    time.Now(),
		Duration:     5 * time.Minute,
		PacketSent:   true,
		Attempts:     30,
		FailedStep:   "wait",
		ErrorMessage: "host nas.lan not reachable after 30 attempts 10s apart",
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Wake Failed")
	assert.Contains(t, result, "Failed step: wait")
	assert.Contains(t, result, "Probes after wake: 30")
	assert.Contains(t, result, "not reachable after 30 attempts")
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"<script>", "&lt;script&gt;"},
		{"a & b", "a &amp; b"},
		{"<>&", "&lt;&gt;&amp;"},
		{"normal text", "normal text"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeHTML(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSendNotification_ContextCancelled(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, context.Canceled
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := models.TelegramMessage{
		Success: true,
		Host:    "nas.lan",
	}

	result, err := svc.SendNotification(ctx, testConfig(), msg)

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}

func replyWith(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestSendNotification_APIErrorDescription(t *testing.T) {
	calls := 0
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			calls++
			return replyWith(http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`), nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org").WithRetry(3, 0)

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)

	var apiErr *APIError
	require.ErrorAs(t, result.Error, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, result.Error.Error(), "chat not found")
	assert.Equal(t, 1, calls, "client errors are not retried")
}

func TestSendNotification_OKFalseWithStatus200(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return replyWith(http.StatusOK, `{"ok":false,"description":"Forbidden: bot was blocked by the user"}`), nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.Contains(t, result.Error.Error(), "bot was blocked")
}

func TestSendNotification_RetriesRateLimit(t *testing.T) {
	calls := 0
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return replyWith(http.StatusTooManyRequests, `{"ok":false,"description":"Too Many Requests: retry after 1"}`), nil
			}
			return replyWith(http.StatusOK, `{"ok":true}`), nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org").WithRetry(3, time.Millisecond)

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
	assert.Equal(t, 2, calls)
}

func TestSendNotification_ServerErrorExhaustsRetries(t *testing.T) {
	calls := 0
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			calls++
			return replyWith(http.StatusBadGateway, "<html>bad gateway</html>"), nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org").WithRetry(3, 0)

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.Contains(t, result.Error.Error(), "status 502")
	assert.Equal(t, 3, calls)
}

func TestSendNotification_TokenNotInTransportError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, &url.Error{Op: "Post", URL: req.URL.String(), Err: errors.New("dial tcp: i/o timeout")}
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Success: true})

	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "i/o timeout")
	assert.NotContains(t, result.Error.Error(), "ABC-DEF")
}
