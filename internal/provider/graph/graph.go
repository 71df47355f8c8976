package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/contact-relay/internal/email"
)

// Config holds the configuration for creating a Provider.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Sender is the mailbox the message is sent from.
	Sender string
}

// Provider sends mail through Microsoft Graph using OAuth2 client
// credentials.
type Provider struct {
	sendURL    string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a Provider talking to the public Graph endpoints.
func New(cfg Config) (*Provider, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.Sender == "" {
		return nil, fmt.Errorf("graph tenant id, client id, client secret and sender are required")
	}

	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	sendURL := fmt.Sprintf("https://graph.microsoft.com/v1.0/users/%s/sendMail", url.PathEscape(cfg.Sender))

	return newWithEndpoints(cfg, sendURL, tokenURL, &http.Client{Timeout: 30 * time.Second}), nil
}

func newWithEndpoints(cfg Config, sendURL, tokenURL string, client *http.Client) *Provider {
	return &Provider{
		sendURL:    sendURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send posts msg to sendMail once. The message always goes out from the
// Sender mailbox; msg.From is ignored. A 401 drops the cached token so the
// next call re-authenticates, but the current call still fails.
func (p *Provider) Send(ctx context.Context, msg *email.Message) error {
	payload, err := json.Marshal(buildSendMailRequest(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	token, err := p.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		slog.Info("graph rejected access token, invalidating cache")
		p.token.Invalidate()
	}

	body, _ := io.ReadAll(resp.Body)
	return newAPIError(resp.StatusCode, body)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "msgraph"
}

// APIError is a non-success response from the sendMail endpoint.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	var parsed graphErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return &APIError{StatusCode: status, Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}
