package payment

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*CryptomusGateway)(nil)

// CryptomusGateway talks to the Cryptomus merchant API. Every request body is
// signed with hex(md5(base64(body) + apiKey)); callbacks are verified with the
// same construction over the raw callback body.
type CryptomusGateway struct {
	merchantID string
	apiKey     string
	baseURL    string
	client     *http.Client
}

func NewCryptomusGateway(merchantID, apiKey, baseURL string, timeout time.Duration) *CryptomusGateway {
	if baseURL == "" {
		baseURL = "https://api.cryptomus.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CryptomusGateway{
		merchantID: merchantID,
		apiKey:     apiKey,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (g *CryptomusGateway) Name() string { return "cryptomus" }

func (g *CryptomusGateway) sign(body []byte) string {
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(body) + g.apiKey))
	return hex.EncodeToString(sum[:])
}

type cryptomusInvoiceResponse struct {
	State  int `json:"state"`
	Result struct {
		UUID          string `json:"uuid"`
		OrderID       string `json:"order_id"`
		URL           string `json:"url"`
		PaymentStatus string `json:"payment_status"`
	} `json:"result"`
	Message string `json:"message"`
}

func (g *CryptomusGateway) CreatePayment(ctx context.Context, amountCents int64, currency, orderRef string) (*adapter.CheckoutIntent, error) {
	payload := map[string]interface{}{
		"amount":   centsToDecimal(amountCents),
		"currency": currency,
		"order_id": orderRef,
	}
	var out cryptomusInvoiceResponse
	if err := g.post(ctx, "/v1/payment", "create", payload, &out); err != nil {
		return nil, err
	}
	if out.State != 0 || out.Result.UUID == "" {
		return nil, fmt.Errorf("%w: cryptomus create state=%d message=%s", domain.ErrGatewayUnavailable, out.State, out.Message)
	}
	return &adapter.CheckoutIntent{
		ExternalID:  out.Result.UUID,
		RedirectURL: out.Result.URL,
	}, nil
}

// VerifyCallback recomputes the signature over the raw callback body and
// compares it in constant time against the vendor-supplied value. Any
// mismatch means not authentic.
func (g *CryptomusGateway) VerifyCallback(rawBody []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := g.sign(rawBody)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (g *CryptomusGateway) QueryStatus(ctx context.Context, externalID string) (adapter.ProviderStatus, error) {
	payload := map[string]interface{}{"uuid": externalID}
	var out cryptomusInvoiceResponse
	if err := g.post(ctx, "/v1/payment/info", "query", payload, &out); err != nil {
		return adapter.ProviderStatusUnknown, err
	}
	if out.State != 0 {
		return adapter.ProviderStatusUnknown, fmt.Errorf("%w: cryptomus info state=%d message=%s", domain.ErrGatewayUnavailable, out.State, out.Message)
	}
	return MapCryptomusStatus(out.Result.PaymentStatus), nil
}

// MapCryptomusStatus normalizes a Cryptomus payment_status value.
func MapCryptomusStatus(s string) adapter.ProviderStatus {
	switch s {
	case "paid", "paid_over":
		return adapter.ProviderStatusPaid
	case "fail", "wrong_amount", "system_fail":
		return adapter.ProviderStatusFailed
	case "cancel":
		return adapter.ProviderStatusCanceled
	case "process", "check", "confirm_check", "confirmations":
		return adapter.ProviderStatusPending
	default:
		return adapter.ProviderStatusUnknown
	}
}

func (g *CryptomusGateway) post(ctx context.Context, path, op string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", domain.ErrGatewayUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", g.merchantID)
	req.Header.Set("sign", g.sign(body))

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ObserveGatewayCall(g.Name(), op, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: cryptomus status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}

func centsToDecimal(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
