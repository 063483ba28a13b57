package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/usecase"
)

type coinsRequest struct {
	// Delta is positive to credit, negative to debit.
	Delta int64 `json:"delta"`
}

// userCoinsHandler credits or debits a user's coin balance directly. Admin
// grants bypass the purchase ledger but reuse the Account Mutator so balance
// invariants hold everywhere.
func userCoinsHandler(account usecase.AccountUseCase, userID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req coinsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		var err error
		if req.Delta >= 0 {
			err = account.CreditCoins(r.Context(), nil, userID, req.Delta)
		} else {
			err = account.DebitCoins(r.Context(), nil, userID, -req.Delta)
		}
		if err != nil {
			writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type membershipRequest struct {
	DurationDays int `json:"duration_days"`
}

func userMembershipHandler(account usecase.AccountUseCase, userID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req membershipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		expiry, err := account.ActivateOrExtendMembership(r.Context(), nil, userID, model.TierPremium, req.DurationDays)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"expires_at": expiry})
	}
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func purchaseRefundHandler(ledger usecase.LedgerUseCase, purchaseID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req refundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		p, err := ledger.Refund(r.Context(), purchaseID, req.Reason)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p)
	}
}

// userNotificationsHandler lists a user's unread notification events so an
// operator can see what the ledger granted or revoked.
func userNotificationsHandler(notifs repository.NotificationRepository, userID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		list, err := notifs.ListUnreadByUser(r.Context(), nil, userID)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		if list == nil {
			list = []*model.Notification{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}

func notificationReadHandler(notifs repository.NotificationRepository, id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := notifs.MarkRead(r.Context(), nil, id); err != nil {
			writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type packageCreateRequest struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"` // "coin" | "membership"
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	Coins        int64  `json:"coins"`
	DurationDays int    `json:"duration_days"`
}

func packagesCreateHandler(packages usecase.PackageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req packageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		var (
			pkg *model.Package
			err error
		)
		switch model.PackageKind(req.Kind) {
		case model.PackageKindCoin:
			pkg, err = packages.CreateCoinPackage(r.Context(), req.Name, req.Coins, req.PriceCents, req.Currency)
		case model.PackageKindMembership:
			pkg, err = packages.CreateMembershipPackage(r.Context(), req.Name, req.DurationDays, req.PriceCents, req.Currency)
		default:
			http.Error(w, "unknown package kind", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeAdminError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(pkg)
	}
}

func packagesListHandler(packages usecase.PackageUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pkgs, err := packages.ListActive(r.Context())
		if err != nil {
			writeAdminError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pkgs)
	}
}

func packagesDeactivateHandler(packages usecase.PackageUseCase, id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := packages.Deactivate(r.Context(), id); err != nil {
			writeAdminError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrAlreadyProcessed), errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
