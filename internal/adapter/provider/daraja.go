// Package provider implements the outbound mobile-money client.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"payloom/config"
	"payloom/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// tokenRetryBackoffs spaces OAuth token fetch retries. Payment calls are
// never retried: a timed-out STK push or payout may still have gone through.
var tokenRetryBackoffs = []time.Duration{time.Second, 3 * time.Second, 10 * time.Second}

// DarajaClient implements ports.PaymentProvider against a Daraja-style
// mobile-money API: OAuth client-credentials token, STK push for collections,
// B2C for payouts.
type DarajaClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	maxRetries     int
	httpClient     HTTPClient
	log            zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewDarajaClient creates a new client from provider configuration.
// httpClient may be nil, in which case a client with the configured timeout
// is used.
func NewDarajaClient(cfg config.ProviderConfig, httpClient HTTPClient, log zerolog.Logger) *DarajaClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &DarajaClient{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		maxRetries:     cfg.MaxRetries,
		httpClient:     httpClient,
		log:            log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"` // seconds, as a string
}

type stkPushRequest struct {
	ShortCode   string `json:"BusinessShortCode"`
	Amount      int64  `json:"Amount"`
	PhoneNumber string `json:"PhoneNumber"`
	Reference   string `json:"AccountReference"`
	Description string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
}

type b2cRequest struct {
	OriginatorID string `json:"OriginatorConversationID"`
	ShortCode    string `json:"InitiatorShortCode"`
	Amount       int64  `json:"Amount"`
	PartyB       string `json:"PartyB"`
	Remarks      string `json:"Remarks"`
}

type b2cResponse struct {
	ConversationID string `json:"ConversationID"`
	ResponseCode   string `json:"ResponseCode"`
	ResponseDesc   string `json:"ResponseDescription"`
}

// InitiateSTKPush asks the provider to prompt the buyer's phone for payment.
// Single attempt: the caller learns the outcome from the webhook, not from
// blind retries that could double-charge.
func (c *DarajaClient) InitiateSTKPush(ctx context.Context, req ports.STKPushRequest) (string, error) {
	body := stkPushRequest{
		ShortCode:   c.shortCode,
		Amount:      req.Amount,
		PhoneNumber: req.Phone,
		Reference:   req.OrderID.String(),
		Description: "Escrow payment",
	}

	var resp stkPushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", body, &resp); err != nil {
		return "", err
	}
	if resp.ResponseCode != "0" {
		return "", fmt.Errorf("stk push rejected: %s (%s)", resp.ResponseDesc, resp.ResponseCode)
	}

	c.log.Info().
		Str("order_id", req.OrderID.String()).
		Str("checkout_request_id", resp.CheckoutRequestID).
		Msg("stk push initiated")
	return resp.CheckoutRequestID, nil
}

// SendPayout sends a B2C transfer. Single attempt, same reasoning as STK push;
// req.Reference identifies the transfer for manual reconciliation.
func (c *DarajaClient) SendPayout(ctx context.Context, req ports.PayoutRequest) (string, error) {
	body := b2cRequest{
		OriginatorID: req.Reference,
		ShortCode:    c.shortCode,
		Amount:       req.Amount,
		PartyB:       req.Phone,
		Remarks:      "Seller withdrawal",
	}

	var resp b2cResponse
	if err := c.post(ctx, "/mpesa/b2c/v1/paymentrequest", body, &resp); err != nil {
		return "", err
	}
	if resp.ResponseCode != "0" {
		return "", fmt.Errorf("b2c payout rejected: %s (%s)", resp.ResponseDesc, resp.ResponseCode)
	}

	c.log.Info().
		Str("reference", req.Reference).
		Str("conversation_id", resp.ConversationID).
		Msg("b2c payout accepted")
	return resp.ConversationID, nil
}

// post sends an authenticated JSON request and decodes the response.
func (c *DarajaClient) post(ctx context.Context, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("obtain access token: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// token returns a cached access token, fetching a fresh one when expired.
// Token fetches, unlike payment calls, are safe to retry.
func (c *DarajaClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	var lastErr error
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := tokenRetryBackoffs[min(attempt-1, len(tokenRetryBackoffs)-1)]
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
		token, ttl, err := c.fetchToken(ctx)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("token fetch failed")
			continue
		}
		c.accessToken = token
		// Renew a minute early to avoid using a token at the edge of expiry.
		c.tokenExpiry = time.Now().Add(ttl - time.Minute)
		return token, nil
	}
	return "", lastErr
}

func (c *DarajaClient) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned empty token")
	}

	ttl := time.Hour
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	return tr.AccessToken, ttl, nil
}
