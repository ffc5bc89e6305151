package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kampai-studio/kampai/internal/pkg/env"
)

// GatewayClient is the narrow surface this service needs from the payment
// gateway. Tests inject a fake; production uses the Toss REST client.
type GatewayClient interface {
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) error
	Cancel(ctx context.Context, paymentKey, reason string) error
}

// GatewayError carries the gateway's own error code and message.
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error %s: %s", e.Code, e.Message)
}

// TossClient talks to the Toss Payments v1 REST API.
type TossClient struct {
	apiURL     string
	secretKey  string
	httpClient *http.Client
}

func NewTossClient() *TossClient {
	return &TossClient{
		apiURL:     env.GetEnv("TOSS_API_URL", "https://api.tosspayments.com"),
		secretKey:  env.GetEnv("TOSS_SECRET_KEY", ""),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// authHeader builds the Basic credential the Toss API expects: the secret
// key with a trailing colon, base64 encoded.
func (c *TossClient) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.secretKey+":"))
}

func (c *TossClient) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var gwErr GatewayError
	if err := json.Unmarshal(raw, &gwErr); err != nil || gwErr.Message == "" {
		gwErr = GatewayError{Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Message: string(raw)}
	}
	return &gwErr
}

// Confirm finalizes a payment at the gateway.
func (c *TossClient) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) error {
	return c.post(ctx, "/v1/payments/confirm", map[string]interface{}{
		"paymentKey": paymentKey,
		"orderId":    orderID,
		"amount":     amount,
	})
}

// Cancel voids an approved payment at the gateway.
func (c *TossClient) Cancel(ctx context.Context, paymentKey, reason string) error {
	return c.post(ctx, "/v1/payments/"+paymentKey+"/cancel", map[string]interface{}{
		"cancelReason": reason,
	})
}
