// Package gateway is the HTTP client for the hosted payment provider:
// initialize a charge (immediate or redirect), verify by reference, refund.
// Amounts cross the wire in the provider's minor unit.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/quickdash/order-api/internal/usecase"
)

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" || cfg.BaseURL == "" {
		return nil, usecase.ErrGatewayConfig
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

type initializeReq struct {
	Email    string         `json:"email"`
	Amount   int64          `json:"amount"`
	Metadata map[string]any `json:"metadata"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
		Status           string `json:"status"`
	} `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, req usecase.ChargeRequest) (*usecase.ChargeResult, error) {
	meta := map[string]any{"order_id": req.OrderID}
	for k, v := range req.MetadataFields {
		meta[k] = v
	}
	body := initializeReq{Email: req.Email, Amount: req.AmountMinor, Metadata: meta}

	var env envelope
	if err := c.post(ctx, "/transaction/initialize", body, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("gateway initialize rejected: %s", env.Message)
	}
	return &usecase.ChargeResult{
		Reference:        env.Data.Reference,
		Status:           env.Data.Status,
		AuthorizationURL: env.Data.AuthorizationURL,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*usecase.VerifyResult, error) {
	var env envelope
	if err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference), &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("gateway verify rejected: %s", env.Message)
	}
	return &usecase.VerifyResult{Status: env.Data.Status}, nil
}

func (c *Client) Refund(ctx context.Context, reference, cancelledBy string) error {
	body := map[string]string{"reference": reference, "cancelled_by": cancelledBy}
	var env envelope
	if err := c.post(ctx, "/refund", body, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("gateway refund rejected: %s", env.Message)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	// 401/403 mean bad credentials, not a transient fault.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: gateway returned %d", usecase.ErrGatewayConfig, resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway unavailable: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway response decode: %w", err)
	}
	return nil
}

var _ usecase.PaymentGateway = (*Client)(nil)
