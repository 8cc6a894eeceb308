package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quickdash/order-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://pay.example"})
	assert.ErrorIs(t, err, usecase.ErrGatewayConfig)

	_, err = NewClient(Config{SecretKey: "sk"})
	assert.ErrorIs(t, err, usecase.ErrGatewayConfig)
}

func TestInitialize_RedirectResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(6200), body["amount"])
		meta := body["metadata"].(map[string]any)
		assert.Equal(t, "ord-1", meta["order_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"authorization_url": "https://pay.example/redir",
				"reference":         "ref-1",
				"status":            "pending",
			},
		})
	})

	res, err := c.Initialize(context.Background(), usecase.ChargeRequest{
		Email:       "a@b.c",
		AmountMinor: 6200,
		OrderID:     "ord-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ref-1", res.Reference)
	assert.Equal(t, "pending", res.Status)
	assert.Equal(t, "https://pay.example/redir", res.AuthorizationURL)
}

func TestInitialize_RejectedCharge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "insufficient limit"})
	})

	_, err := c.Initialize(context.Background(), usecase.ChargeRequest{Email: "a@b.c", AmountMinor: 1})
	assert.ErrorContains(t, err, "insufficient limit")
}

func TestVerify_StatusPassthrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"status": "success"},
		})
	})

	res, err := c.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
}

func TestDo_BadCredentialsAreFatal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Verify(context.Background(), "ref-1")
	assert.ErrorIs(t, err, usecase.ErrGatewayConfig)
}

func TestDo_ServerErrorsAreTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Verify(context.Background(), "ref-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, usecase.ErrGatewayConfig)
	assert.ErrorContains(t, err, "gateway unavailable")
}

func TestRefund_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref-1", body["reference"])
		assert.Equal(t, "merchant", body["cancelled_by"])
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	assert.NoError(t, c.Refund(context.Background(), "ref-1", "merchant"))
}
