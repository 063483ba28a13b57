//go:build !integration

package payment

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/ports/adapter"
)

func TestCryptomusGateway_VerifyCallback(t *testing.T) {
	g := NewCryptomusGateway("merchant-1", "secret-key", "", time.Second)

	body := []byte(`{"uuid":"abc","order_id":"o-1","payment_status":"paid"}`)
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(body) + "secret-key"))
	goodSig := hex.EncodeToString(sum[:])

	t.Run("should accept a correctly signed body", func(t *testing.T) {
		if !g.VerifyCallback(body, goodSig) {
			t.Error("expected a valid signature to verify")
		}
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		tampered := []byte(`{"uuid":"abc","order_id":"o-1","payment_status":"paid","amount":"9999"}`)
		if g.VerifyCallback(tampered, goodSig) {
			t.Error("expected a tampered body to fail verification")
		}
	})

	t.Run("should reject a wrong signature", func(t *testing.T) {
		if g.VerifyCallback(body, "deadbeef") {
			t.Error("expected a wrong signature to fail verification")
		}
	})

	t.Run("should reject an empty signature", func(t *testing.T) {
		if g.VerifyCallback(body, "") {
			t.Error("expected an empty signature to fail verification")
		}
	})
}

func TestCryptomusGateway_CreatePayment(t *testing.T) {
	t.Run("should sign the request and return the invoice", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/payment" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("merchant") != "merchant-1" {
				t.Errorf("missing merchant header, got %q", r.Header.Get("merchant"))
			}
			if r.Header.Get("sign") == "" {
				t.Error("missing sign header")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"state": 0,
				"result": map[string]string{
					"uuid": "inv-123",
					"url":  "https://pay.cryptomus.com/inv-123",
				},
			})
		}))
		defer srv.Close()

		g := NewCryptomusGateway("merchant-1", "secret-key", srv.URL, time.Second)
		intent, err := g.CreatePayment(context.Background(), 9_99, "USD", "order-1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if intent.ExternalID != "inv-123" || intent.RedirectURL != "https://pay.cryptomus.com/inv-123" {
			t.Errorf("unexpected intent: %+v", intent)
		}
	})

	t.Run("should surface a provider error as gateway unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"state": 1, "message": "wrong amount"})
		}))
		defer srv.Close()

		g := NewCryptomusGateway("merchant-1", "secret-key", srv.URL, time.Second)
		_, err := g.CreatePayment(context.Background(), 9_99, "USD", "order-1")
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, but got %v", err)
		}
	})

	t.Run("should surface a transport failure as gateway unavailable", func(t *testing.T) {
		g := NewCryptomusGateway("merchant-1", "secret-key", "http://127.0.0.1:1", 200*time.Millisecond)
		_, err := g.CreatePayment(context.Background(), 9_99, "USD", "order-1")
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, but got %v", err)
		}
	})
}

func TestMapCryptomusStatus(t *testing.T) {
	cases := map[string]adapter.ProviderStatus{
		"paid":        adapter.ProviderStatusPaid,
		"paid_over":   adapter.ProviderStatusPaid,
		"fail":        adapter.ProviderStatusFailed,
		"cancel":      adapter.ProviderStatusCanceled,
		"process":     adapter.ProviderStatusPending,
		"confirmations": adapter.ProviderStatusPending,
		"weird":       adapter.ProviderStatusUnknown,
	}
	for in, want := range cases {
		if got := MapCryptomusStatus(in); got != want {
			t.Errorf("MapCryptomusStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

// newPayPalTestServer serves the oauth token endpoint plus the given order
// handler, counting token requests.
func newPayPalTestServer(t *testing.T, tokenCalls *int, orders http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("bad basic auth: %q/%q", user, pass)
		}
		*tokenCalls++
		json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders", orders)
	mux.HandleFunc("/v2/checkout/orders/", orders)
	return httptest.NewServer(mux)
}

func TestPayPalGateway(t *testing.T) {
	t.Run("should create an order and pick the approve link", func(t *testing.T) {
		tokenCalls := 0
		srv := newPayPalTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				t.Errorf("bad authorization header %q", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "ORDER-1",
				"status": "CREATED",
				"links": []map[string]string{
					{"rel": "self", "href": "https://paypal.example/self"},
					{"rel": "approve", "href": "https://paypal.example/approve"},
				},
			})
		})
		defer srv.Close()

		g := NewPayPalGateway("client-id", "client-secret", true, "https://shop.example/return", "https://shop.example/cancel", time.Second)
		g.baseURL = srv.URL

		intent, err := g.CreatePayment(context.Background(), 7_99, "USD", "order-1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if intent.ExternalID != "ORDER-1" || intent.RedirectURL != "https://paypal.example/approve" {
			t.Errorf("unexpected intent: %+v", intent)
		}
	})

	t.Run("should reuse the cached token across calls", func(t *testing.T) {
		tokenCalls := 0
		srv := newPayPalTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "ORDER-1", "status": "COMPLETED"})
		})
		defer srv.Close()

		g := NewPayPalGateway("client-id", "client-secret", true, "", "", time.Second)
		g.baseURL = srv.URL

		for i := 0; i < 3; i++ {
			if _, err := g.QueryStatus(context.Background(), "ORDER-1"); err != nil {
				t.Fatalf("query %d: %v", i, err)
			}
		}
		if tokenCalls != 1 {
			t.Errorf("expected 1 token request, but got %d", tokenCalls)
		}
	})

	t.Run("should report paid after a successful capture", func(t *testing.T) {
		tokenCalls := 0
		srv := newPayPalTestServer(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "ORDER-1", "status": "COMPLETED"})
		})
		defer srv.Close()

		g := NewPayPalGateway("client-id", "client-secret", true, "", "", time.Second)
		g.baseURL = srv.URL

		status, err := g.CaptureOrder(context.Background(), "ORDER-1")
		if err != nil {
			t.Fatalf("capture: %v", err)
		}
		if status != adapter.ProviderStatusPaid {
			t.Errorf("expected paid, but got %q", status)
		}
	})

	t.Run("should never trust an inbound callback", func(t *testing.T) {
		g := NewPayPalGateway("client-id", "client-secret", true, "", "", time.Second)
		if g.VerifyCallback([]byte(`{"anything":true}`), "sig") {
			t.Error("expected VerifyCallback to always report not authentic")
		}
	})
}

func TestNoopGateway(t *testing.T) {
	g := NewNoopGateway()
	intent, err := g.CreatePayment(context.Background(), 100, "USD", "o-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	status, err := g.QueryStatus(context.Background(), intent.ExternalID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if status != adapter.ProviderStatusPending {
		t.Errorf("expected pending before MarkPaid, got %q", status)
	}

	g.MarkPaid(intent.ExternalID)
	status, _ = g.QueryStatus(context.Background(), intent.ExternalID)
	if status != adapter.ProviderStatusPaid {
		t.Errorf("expected paid after MarkPaid, got %q", status)
	}
}

func TestCentsToDecimal(t *testing.T) {
	cases := map[int64]string{
		9_99:   "9.99",
		100:    "1.00",
		5:      "0.05",
		123456: "1234.56",
	}
	for in, want := range cases {
		if got := centsToDecimal(in); got != want {
			t.Errorf("centsToDecimal(%d) = %q, want %q", in, got, want)
		}
	}
}
