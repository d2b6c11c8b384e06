package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client talks to the payment-proxy service.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid payment proxy url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

type CreatePaymentResult struct {
	PaymentID   string `json:"paymentId"`
	ApprovalURL string `json:"approvalUrl"`
}

type CaptureResult struct {
	Success bool `json:"success"`
	Data    struct {
		ID         string `json:"id"`
		Total      string `json:"total"`
		PayerEmail string `json:"payer_email"`
	} `json:"data"`
}

func (c *Client) CreatePayment(ctx context.Context, amount float64) (*CreatePaymentResult, error) {
	var out CreatePaymentResult
	if err := c.post(ctx, "/create-payment", map[string]any{"amount": amount}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (*CaptureResult, error) {
	var out CaptureResult
	body := map[string]any{"paymentId": paymentID, "payerId": payerID}
	if err := c.post(ctx, "/execute-payment", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call payment proxy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment proxy %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payment proxy response: %w", err)
	}
	return nil
}
