package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
)

const maxTelegramBody = 64 << 10

type TelegramConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

type telegram struct {
	client  *retryablehttp.Client
	baseURL string
	token   string
}

// NewTelegram returns a dispatcher that answers through the Bot API. Sends
// follow the same replay rules as Respond.io.
func NewTelegram(cfg TelegramConfig) (Dispatcher, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = max(cfg.MaxRetries, 0)
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	// Request URLs carry the bot token.
	client.Logger = nil
	client.CheckRetry = checkRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &telegram{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}, nil
}

type telegramSendRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send uses channelID as the chat id when present; otherwise the chat id is
// recovered from the scoped contact id.
func (t *telegram) Send(ctx context.Context, contactID, channelID, text string) error {
	chat := channelID
	if chat == "" {
		chat = strings.TrimPrefix(contactID, model.TelegramIDPrefix)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: telegram chat id %q: %w", ErrSendFailed, chat, err)
	}

	if err := t.call(withoutReplay(ctx), "sendMessage", telegramSendRequest{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	slog.InfoContext(ctx, "reply sent", "chars", len(text), "channel", model.SourceTelegramBot)
	return nil
}

// MarkRead is a no-op; the Bot API has no read receipts.
func (t *telegram) MarkRead(context.Context, string, string, string) error {
	return nil
}

func (t *telegram) ResolveOrCreateContact(context.Context, ContactRef) (string, error) {
	return "", fmt.Errorf("telegram: contact resolution: %w", errors.ErrUnsupported)
}

func (t *telegram) call(ctx context.Context, method string, in any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := t.baseURL + "/bot" + t.token + "/" + method
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, redact(err, t.token))
	}
	defer resp.Body.Close()

	var out telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTelegramBody)).Decode(&out); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("decoding telegram response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, out.Description)
	}
	return nil
}

func redact(err error, token string) error {
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
