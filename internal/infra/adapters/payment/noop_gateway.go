package payment

import (
	"context"
	"fmt"
	"sync"

	"webnovel-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway to use in dev mode and tests.
type NoopGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]adapter.ProviderStatus
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{intents: make(map[string]adapter.ProviderStatus)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreatePayment(ctx context.Context, amountCents int64, currency, orderRef string) (*adapter.CheckoutIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-%d", g.seq)
	g.intents[id] = adapter.ProviderStatusPending
	return &adapter.CheckoutIntent{
		ExternalID:  id,
		RedirectURL: "https://example.test/pay/" + id,
	}, nil
}

func (g *NoopGateway) VerifyCallback(rawBody []byte, signature string) bool {
	return signature == "noop"
}

func (g *NoopGateway) QueryStatus(ctx context.Context, externalID string) (adapter.ProviderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[externalID]
	if !ok {
		return adapter.ProviderStatusUnknown, fmt.Errorf("noop: unknown external id %s", externalID)
	}
	return st, nil
}

// MarkPaid flips an intent to paid so tests and dev flows can confirm it.
func (g *NoopGateway) MarkPaid(externalID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[externalID] = adapter.ProviderStatusPaid
}
