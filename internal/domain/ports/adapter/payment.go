package adapter

import "context"

// ProviderStatus is the normalized view of a provider-side transaction state.
type ProviderStatus string

const (
	ProviderStatusPending  ProviderStatus = "pending"
	ProviderStatusPaid     ProviderStatus = "paid"
	ProviderStatusFailed   ProviderStatus = "failed"
	ProviderStatusCanceled ProviderStatus = "canceled"
	ProviderStatusUnknown  ProviderStatus = "unknown"
)

// CheckoutIntent is the provider's answer to a payment request: where to send
// the user, and the reference the provider will use in later notifications.
type CheckoutIntent struct {
	ExternalID  string
	RedirectURL string
}

// PaymentGateway abstracts one external payment processor. Implementations
// must convert every transport or provider failure into a typed error
// (domain.ErrGatewayUnavailable wrapped with detail) and must never report
// success on a failed call.
type PaymentGateway interface {
	Name() string

	// CreatePayment registers a payment intent with the provider and returns
	// the redirect URL plus the provider's transaction reference.
	CreatePayment(ctx context.Context, amountCents int64, currency, orderRef string) (*CheckoutIntent, error)

	// VerifyCallback reports whether an inbound callback body is authentically
	// signed by the provider. Any mismatch means "not authentic", never a
	// soft warning.
	VerifyCallback(rawBody []byte, signature string) bool

	// QueryStatus asks the provider for the current state of a transaction.
	QueryStatus(ctx context.Context, externalID string) (ProviderStatus, error)
}

// CapturingGateway is implemented by providers whose flow confirms payment via
// a synchronous capture call on user return rather than a signed webhook.
type CapturingGateway interface {
	PaymentGateway
	CaptureOrder(ctx context.Context, externalID string) (ProviderStatus, error)
}
