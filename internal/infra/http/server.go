// File: internal/infra/http/server.go
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webnovel-billing/internal/config"
	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/ports/adapter"
	"webnovel-billing/internal/infra/logging"
	"webnovel-billing/internal/infra/metrics"
	"webnovel-billing/internal/usecase"
)

const maxCallbackBody = 1 << 20 // 1 MiB

// Server exposes the public billing surface: checkout, purchase status
// polling, and the provider callback routes.
type Server struct {
	ledger     usecase.LedgerUseCase
	membership usecase.MembershipUseCase
	gateways   map[string]adapter.PaymentGateway
	server     *http.Server
	log        *zerolog.Logger
}

func NewServer(cfg *config.Config, ledger usecase.LedgerUseCase, membership usecase.MembershipUseCase, gateways map[string]adapter.PaymentGateway, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{
		ledger:     ledger,
		membership: membership,
		gateways:   gateways,
		log:        &l,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckout)
		r.Get("/purchases/{id}", s.handlePurchaseStatus)
		r.Get("/paypal/return", s.handlePayPalReturn)
		r.Get("/paypal/cancel", s.handlePayPalCancel)
	})

	r.Post("/webhook/{provider}", s.handleWebhook)
	return r
}

// traceMiddleware stamps every request with a trace id so its log lines can
// be correlated.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("public HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type checkoutRequest struct {
	UserID    string `json:"user_id"`
	PackageID string `json:"package_id"`
	Provider  string `json:"provider"`
}

type checkoutResponse struct {
	PurchaseID  string `json:"purchase_id"`
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ctx = logging.WithUserID(ctx, req.UserID)

	// lazy expiration: the tier this request observes is never stale
	if _, err := s.membership.ExpireUserIfDue(ctx, req.UserID); err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("lazy expiry failed")
	}

	p, redirect, err := s.ledger.Checkout(ctx, req.UserID, req.PackageID, req.Provider)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{PurchaseID: p.ID, RedirectURL: redirect})
}

func (s *Server) handlePurchaseStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.ledger.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// providerCallback is the superset of fields the supported providers put in
// their notifications; each adapter fills the ones it knows.
type providerCallback struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")
	gw, ok := s.gateways[providerName]
	if !ok {
		metrics.IncWebhookReject(providerName, "unknown_provider")
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		metrics.IncWebhookReject(providerName, "unparsable")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("sign")
	if !gw.VerifyCallback(body, signature) {
		metrics.IncWebhookReject(providerName, "bad_signature")
		logging.With(ctx, s.log).Warn().
			Err(domain.ErrNotAuthentic).
			Str("provider", providerName).
			Str("remote", r.RemoteAddr).
			Msg("webhook rejected")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var cb providerCallback
	if err := json.Unmarshal(body, &cb); err != nil || cb.UUID == "" {
		metrics.IncWebhookReject(providerName, "unparsable")
		logging.With(ctx, s.log).Warn().Str("provider", providerName).Msg("webhook rejected: unparsable payload")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	p, err := s.ledger.FindByExternalRef(ctx, providerName, cb.UUID)
	if err != nil {
		// a reference we never issued is a replay or a forgery, not a no-op
		metrics.IncWebhookReject(providerName, "unknown_purchase")
		logging.With(ctx, s.log).Warn().
			Str("provider", providerName).
			Str("external_ref", cb.UUID).
			Msg("webhook rejected: unknown purchase reference")
		http.Error(w, "unknown purchase", http.StatusNotFound)
		return
	}
	ctx = logging.WithPurchaseID(logging.WithUserID(ctx, p.UserID), p.ID)

	switch mapCallbackStatus(providerName, cb.PaymentStatus) {
	case adapter.ProviderStatusPaid:
		_, err = s.ledger.Complete(ctx, p.ID)
	case adapter.ProviderStatusFailed, adapter.ProviderStatusCanceled:
		err = s.ledger.Fail(ctx, p.ID, "provider reported "+cb.PaymentStatus)
	default:
		// not terminal yet; acknowledge so the provider stops retrying this state
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			// provider retries are expected; report idempotent success
			writeJSON(w, http.StatusOK, map[string]string{"result": "already handled"})
			return
		}
		s.writeError(w, err)
		return
	}
	logging.With(ctx, s.log).Debug().Str("provider", providerName).Msg("webhook processed")
	w.WriteHeader(http.StatusOK)
}

// handlePayPalReturn finishes the synchronous capture flow: the buyer comes
// back with the order token, we capture and complete.
func (s *Server) handlePayPalReturn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID := r.URL.Query().Get("token")
	if orderID == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	gw, ok := s.gateways["paypal"]
	if !ok {
		http.Error(w, "paypal not configured", http.StatusNotFound)
		return
	}
	capturing, ok := gw.(adapter.CapturingGateway)
	if !ok {
		http.Error(w, "paypal not configured", http.StatusNotFound)
		return
	}

	p, err := s.ledger.FindByExternalRef(ctx, "paypal", orderID)
	if err != nil {
		metrics.IncWebhookReject("paypal", "unknown_purchase")
		http.Error(w, "unknown purchase", http.StatusNotFound)
		return
	}

	status, err := capturing.CaptureOrder(ctx, orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch status {
	case adapter.ProviderStatusPaid:
		if _, err := s.ledger.Complete(ctx, p.ID); err != nil && !errors.Is(err, domain.ErrAlreadyProcessed) {
			s.writeError(w, err)
			return
		}
		fmt.Fprint(w, "Payment complete. You can return to the app.")
	default:
		if err := s.ledger.Fail(ctx, p.ID, "paypal capture returned "+string(status)); err != nil && !errors.Is(err, domain.ErrAlreadyProcessed) {
			s.writeError(w, err)
			return
		}
		http.Error(w, "payment not completed", http.StatusPaymentRequired)
	}
}

// handlePayPalCancel is where the buyer lands after abandoning the PayPal
// checkout. The order was never captured, so the purchase just fails.
func (s *Server) handlePayPalCancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	orderID := r.URL.Query().Get("token")
	if orderID == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	p, err := s.ledger.FindByExternalRef(ctx, "paypal", orderID)
	if err != nil {
		http.Error(w, "unknown purchase", http.StatusNotFound)
		return
	}

	if err := s.ledger.Fail(ctx, p.ID, "buyer canceled at paypal"); err != nil && !errors.Is(err, domain.ErrAlreadyProcessed) {
		s.writeError(w, err)
		return
	}
	fmt.Fprint(w, "Payment canceled. You can return to the app.")
}

// mapCallbackStatus normalizes the status field of a signed callback body.
// Only the cryptomus flow reaches this path today; the paypal flow confirms
// via capture instead.
func mapCallbackStatus(provider, status string) adapter.ProviderStatus {
	switch status {
	case "paid", "paid_over":
		return adapter.ProviderStatusPaid
	case "fail", "wrong_amount", "system_fail":
		return adapter.ProviderStatusFailed
	case "cancel":
		return adapter.ProviderStatusCanceled
	default:
		return adapter.ProviderStatusPending
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrUserBanned),
		errors.Is(err, domain.ErrPackageInactive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrPendingPurchase),
		errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrGatewayUnavailable):
		// retryable from the caller's perspective
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.log.Error().Err(err).Msg("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
