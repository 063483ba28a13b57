package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"webnovel-billing/internal/config"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/usecase"
)

// Server is the operator-facing API: direct account mutation, refunds and
// catalog management, plus the Prometheus scrape endpoint. Everything except
// /metrics and /login sits behind auth.
type Server struct {
	account  usecase.AccountUseCase
	ledger   usecase.LedgerUseCase
	packages usecase.PackageUseCase
	notifs   repository.NotificationRepository
	auth     *AuthManager
	apiKey   string
	server   *http.Server
	log      *zerolog.Logger
}

func NewServer(cfg *config.Config, account usecase.AccountUseCase, ledger usecase.LedgerUseCase, packages usecase.PackageUseCase, notifs repository.NotificationRepository, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminServer").Logger()
	s := &Server{
		account:  account,
		ledger:   ledger,
		packages: packages,
		notifs:   notifs,
		auth:     NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, cfg.Admin.SessionTTL),
		apiKey:   cfg.Admin.APIKey,
		log:      &l,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admin/login", s.loginHandler)

	usersRouter := s.authMiddleware(s.usersRouter())
	mux.Handle("/admin/users/", usersRouter)

	mux.Handle("/admin/purchases/", s.authMiddleware(s.purchasesRouter()))

	mux.Handle("/admin/notifications/", s.authMiddleware(s.notificationsRouter()))

	packagesRouter := s.authMiddleware(s.packagesRouter())
	mux.Handle("/admin/packages", packagesRouter)
	mux.Handle("/admin/packages/", packagesRouter)
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware accepts either the admin session cookie or a Bearer API key.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth.Verify(r) == nil {
			next.ServeHTTP(w, r)
			return
		}

		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}
		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	authHeader := r.Header.Get("Authorization")
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || s.apiKey == "" || tokenParts[1] != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// usersRouter dispatches /admin/users/{id}/coins, /admin/users/{id}/membership
// and /admin/users/{id}/notifications.
func (s *Server) usersRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/admin/users/")
		parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
		if len(parts) != 2 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		userID, action := parts[0], parts[1]

		switch action {
		case "coins":
			userCoinsHandler(s.account, userID)(w, r)
		case "membership":
			userMembershipHandler(s.account, userID)(w, r)
		case "notifications":
			userNotificationsHandler(s.notifs, userID)(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// notificationsRouter dispatches /admin/notifications/{id}/read.
func (s *Server) notificationsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/admin/notifications/")
		parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "read" {
			http.NotFound(w, r)
			return
		}
		notificationReadHandler(s.notifs, parts[0])(w, r)
	})
}

// purchasesRouter dispatches /admin/purchases/{id}/refund.
func (s *Server) purchasesRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/admin/purchases/")
		parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "refund" {
			http.NotFound(w, r)
			return
		}
		purchaseRefundHandler(s.ledger, parts[0])(w, r)
	})
}

// packagesRouter dispatches /admin/packages (GET list, POST create) and
// /admin/packages/{id} (DELETE deactivate).
func (s *Server) packagesRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/admin/packages")
		path = strings.Trim(path, "/")

		if path == "" {
			switch r.Method {
			case http.MethodGet:
				packagesListHandler(s.packages)(w, r)
			case http.MethodPost:
				packagesCreateHandler(s.packages)(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}
		if r.Method == http.MethodDelete {
			packagesDeactivateHandler(s.packages, path)(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}
