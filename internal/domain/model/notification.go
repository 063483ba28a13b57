package model

import "time"

type NotificationKind string

const (
	NotificationPurchaseCompleted NotificationKind = "purchase_completed"
	NotificationPurchaseRefunded  NotificationKind = "purchase_refunded"
	NotificationMembershipGranted NotificationKind = "membership_granted"
	NotificationMembershipExpired NotificationKind = "membership_expired"
)

// Notification is a mutation-time event record ("membership granted, show a
// banner once"). The billing core only writes these; reading and display are
// owned by the presentation layer.
type Notification struct {
	ID         string
	UserID     string
	Kind       NotificationKind
	PurchaseID string // empty for sweep-driven events
	CreatedAt  time.Time
	ReadAt     *time.Time
}
