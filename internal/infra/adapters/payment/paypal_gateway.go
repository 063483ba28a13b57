package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/infra/metrics"
)

var _ adapter.CapturingGateway = (*PayPalGateway)(nil)

// PayPalGateway uses the Orders v2 API: create an order at checkout, then
// capture it synchronously when the buyer returns. There is no signed webhook
// in this flow, so VerifyCallback always reports not authentic and the router
// must confirm via capture/status instead.
type PayPalGateway struct {
	clientID  string
	secret    string
	baseURL   string
	returnURL string
	cancelURL string
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayPalGateway(clientID, secret string, sandbox bool, returnURL, cancelURL string, timeout time.Duration) *PayPalGateway {
	baseURL := "https://api-m.paypal.com"
	if sandbox {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PayPalGateway{
		clientID:  clientID,
		secret:    secret,
		baseURL:   baseURL,
		returnURL: returnURL,
		cancelURL: cancelURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *PayPalGateway) Name() string { return "paypal" }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached client-credentials bearer token, refreshing it
// shortly before expiry.
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", domain.ErrGatewayUnavailable, err)
	}
	req.SetBasicAuth(g.clientID, g.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.ObserveGatewayCall(g.Name(), "token", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read token response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: paypal token status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, string(raw))
	}

	var tok paypalTokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: unmarshal token response: %v", domain.ErrGatewayUnavailable, err)
	}

	g.accessToken = tok.AccessToken
	// refresh a minute early to avoid using a token mid-expiry
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (g *PayPalGateway) CreatePayment(ctx context.Context, amountCents int64, currency, orderRef string) (*adapter.CheckoutIntent, error) {
	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": orderRef,
			"amount": map[string]string{
				"currency_code": currency,
				"value":         centsToDecimal(amountCents),
			},
		}},
		"application_context": map[string]string{
			"return_url": g.returnURL,
			"cancel_url": g.cancelURL,
		},
	}

	var out paypalOrderResponse
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", "create", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: paypal order response missing id", domain.ErrGatewayUnavailable)
	}

	approveURL := ""
	for _, l := range out.Links {
		if l.Rel == "approve" {
			approveURL = l.Href
			break
		}
	}
	if approveURL == "" {
		return nil, fmt.Errorf("%w: paypal order %s has no approve link", domain.ErrGatewayUnavailable, out.ID)
	}
	return &adapter.CheckoutIntent{ExternalID: out.ID, RedirectURL: approveURL}, nil
}

// VerifyCallback: the capture flow carries no verifiable signature, so no
// inbound callback is ever trusted on its own.
func (g *PayPalGateway) VerifyCallback(rawBody []byte, signature string) bool { return false }

func (g *PayPalGateway) CaptureOrder(ctx context.Context, externalID string) (adapter.ProviderStatus, error) {
	var out paypalOrderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", externalID)
	if err := g.call(ctx, http.MethodPost, path, "capture", map[string]interface{}{}, &out); err != nil {
		return adapter.ProviderStatusUnknown, err
	}
	return mapPayPalStatus(out.Status), nil
}

func (g *PayPalGateway) QueryStatus(ctx context.Context, externalID string) (adapter.ProviderStatus, error) {
	var out paypalOrderResponse
	if err := g.call(ctx, http.MethodGet, "/v2/checkout/orders/"+externalID, "query", nil, &out); err != nil {
		return adapter.ProviderStatusUnknown, err
	}
	return mapPayPalStatus(out.Status), nil
}

func mapPayPalStatus(s string) adapter.ProviderStatus {
	switch s {
	case "COMPLETED":
		return adapter.ProviderStatusPaid
	case "CREATED", "SAVED", "APPROVED", "PAYER_ACTION_REQUIRED":
		return adapter.ProviderStatusPending
	case "VOIDED":
		return adapter.ProviderStatusCanceled
	default:
		return adapter.ProviderStatusUnknown
	}
}

func (g *PayPalGateway) call(ctx context.Context, method, path, op string, payload interface{}, out interface{}) error {
	tok, err := g.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %v", domain.ErrGatewayUnavailable, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

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
		return fmt.Errorf("%w: paypal %s status %d: %s", domain.ErrGatewayUnavailable, path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}
