// Package paymentproxy is a thin pass-through between the mobile app
// and the PayPal orders API. It holds the API credentials so the app
// never sees them.
package paymentproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	ClientID string
	Secret   string

	// PayPalBaseURL defaults to the sandbox environment.
	PayPalBaseURL string
	// RedirectBaseURL is where PayPal sends the buyer back after
	// approval, e.g. "http://192.168.0.127:3001".
	RedirectBaseURL string
	// CurrencyCode defaults to MXN.
	CurrencyCode string

	Timeout time.Duration
}

type Server struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

func NewServer(cfg Config, logger *log.Logger) *Server {
	if cfg.PayPalBaseURL == "" {
		cfg.PayPalBaseURL = "https://api-m.sandbox.paypal.com"
	}
	if cfg.CurrencyCode == "" {
		cfg.CurrencyCode = "MXN"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Server{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "payment-proxy"})
	})

	mux.HandleFunc("GET /checkout/complete", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Pago completado, puede cerrar esta ventana.")
	})

	mux.HandleFunc("GET /checkout/cancel", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Pago cancelado, puede cerrar esta ventana.")
	})

	mux.HandleFunc("POST /create-payment", s.handleCreatePayment)
	mux.HandleFunc("POST /execute-payment", s.handleExecutePayment)

	return mux
}

// accessToken exchanges the client credentials for an OAuth token.
func (s *Server) accessToken(ctx context.Context) (string, error) {
	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PayPalBaseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}
	return body.AccessToken, nil
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 {
		s.logger.Printf("create-payment: invalid amount")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	token, err := s.accessToken(r.Context())
	if err != nil {
		s.logger.Printf("create-payment: token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orderReq := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": s.cfg.CurrencyCode,
				"value":         fmt.Sprintf("%.2f", body.Amount),
			},
		}},
		"application_context": map[string]string{
			"return_url": s.cfg.RedirectBaseURL + "/checkout/complete",
			"cancel_url": s.cfg.RedirectBaseURL + "/checkout/cancel",
		},
	}

	var orderResp struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := s.paypalPost(r.Context(), token, "/v2/checkout/orders", orderReq, &orderResp); err != nil {
		s.logger.Printf("create-payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	approvalURL := ""
	for _, l := range orderResp.Links {
		if l.Rel == "approve" {
			approvalURL = l.Href
			break
		}
	}
	if approvalURL == "" {
		s.logger.Printf("create-payment: no approval link in response for order %s", orderResp.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	s.logger.Printf("create-payment: created order %s", orderResp.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"paymentId":   orderResp.ID,
		"approvalUrl": approvalURL,
	})
}

func (s *Server) handleExecutePayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PaymentID string `json:"paymentId"`
		PayerID   string `json:"payerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PaymentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "missing paymentId"})
		return
	}

	token, err := s.accessToken(r.Context())
	if err != nil {
		s.logger.Printf("execute-payment: token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "payment capture failed"})
		return
	}

	var capture struct {
		ID            string `json:"id"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					Amount struct {
						Value string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
		Payer struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
	}

	path := "/v2/checkout/orders/" + url.PathEscape(body.PaymentID) + "/capture"
	if err := s.paypalPost(r.Context(), token, path, map[string]any{}, &capture); err != nil {
		s.logger.Printf("execute-payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "payment capture failed"})
		return
	}

	total := ""
	if len(capture.PurchaseUnits) > 0 && len(capture.PurchaseUnits[0].Payments.Captures) > 0 {
		total = capture.PurchaseUnits[0].Payments.Captures[0].Amount.Value
	}
	if total == "" {
		s.logger.Printf("execute-payment: no capture total for %s", body.PaymentID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "payment capture failed"})
		return
	}

	s.logger.Printf("execute-payment: captured %s", capture.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"id":          capture.ID,
			"total":       total,
			"payer_email": capture.Payer.EmailAddress,
		},
	})
}

func (s *Server) paypalPost(ctx context.Context, token, path string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.PayPalBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("call paypal %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("paypal %s returned %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
