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
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const maxErrorBody = 512

type RespondIOConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
}

type respondIO struct {
	client  *retryablehttp.Client
	baseURL string
	token   string
}

// NewRespondIO returns a dispatcher backed by the Respond.io REST API.
// Reads and contact lookups retry 429 and 5xx responses up to MaxRetries
// times. Sends retry only when the API cannot have accepted the message.
func NewRespondIO(cfg RespondIOConfig) (Dispatcher, error) {
	if cfg.Token == "" {
		return nil, errors.New("respond.io: API token is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("respond.io: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = max(cfg.MaxRetries, 0)
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = slog.Default().With("component", "respondio")
	client.CheckRetry = checkRetry
	// Surface the final response instead of a generic "giving up" error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &respondIO{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}, nil
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendRequest struct {
	ContactID string      `json:"contactId"`
	ChannelID string      `json:"channelId,omitempty"`
	Message   textMessage `json:"message"`
}

func (r *respondIO) Send(ctx context.Context, contactID, channelID, text string) error {
	body := sendRequest{
		ContactID: contactID,
		ChannelID: channelID,
		Message:   textMessage{Type: "text", Text: text},
	}
	if err := r.do(withoutReplay(ctx), http.MethodPost, "/messages", body, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	slog.InfoContext(ctx, "reply sent", "chars", len(text))
	return nil
}

type markReadRequest struct {
	ContactID string `json:"contactId"`
	ChannelID string `json:"channelId,omitempty"`
	MessageID string `json:"messageId"`
}

func (r *respondIO) MarkRead(ctx context.Context, contactID, channelID, messageID string) error {
	return r.do(ctx, http.MethodPost, "/messages/read", markReadRequest{
		ContactID: contactID,
		ChannelID: channelID,
		MessageID: messageID,
	}, nil)
}

type contactRequest struct {
	ExternalID string `json:"externalId"`
	FirstName  string `json:"firstName,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type contactResponse struct {
	ID json.Number `json:"id"`
}

func (r *respondIO) ResolveOrCreateContact(ctx context.Context, ref ContactRef) (string, error) {
	if ref.ExternalID == "" {
		return "", errors.New("respond.io: external id is required")
	}
	var resp contactResponse
	path := "/contact/create_or_update/" + url.PathEscape("external_id:"+ref.ExternalID)
	if err := r.do(ctx, http.MethodPost, path, contactRequest{
		ExternalID: ref.ExternalID,
		FirstName:  ref.Name,
		Phone:      ref.Phone,
	}, &resp); err != nil {
		return "", fmt.Errorf("resolving contact: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("respond.io: contact response without id")
	}
	return resp.ID.String(), nil
}

type noReplayKey struct{}

// withoutReplay marks a request that must not be repeated once the API may
// have acted on it.
func withoutReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, noReplayKey{}, true)
}

// checkRetry limits non-replayable requests to rate limits and refused
// connections. A 5xx or a timeout may follow a delivered message.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Value(noReplayKey{}) == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return errors.Is(err, syscall.ECONNREFUSED), nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

func (r *respondIO) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("respond.io %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("respond.io %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding respond.io response: %w", err)
	}
	return nil
}
