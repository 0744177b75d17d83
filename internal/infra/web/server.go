package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-secret-relay/internal/usecase"
)

// Server exposes the admin API, health probe, and Prometheus metrics.
// Admin routes accept either the raw API key as a Bearer token or a
// session JWT minted via /api/v1/login.
type Server struct {
	statsUC usecase.StatsUseCase
	userUC  usecase.UserUseCase
	adminUC usecase.AdminUseCase

	apiKey  string
	ownerID int64
	auth    *AuthManager
	log     *zerolog.Logger
}

func NewServer(
	statsUC usecase.StatsUseCase,
	userUC usecase.UserUseCase,
	adminUC usecase.AdminUseCase,
	apiKey string,
	sessionSecret string,
	ownerID int64,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		statsUC: statsUC,
		userUC:  userUC,
		adminUC: adminUC,
		apiKey:  apiKey,
		ownerID: ownerID,
		auth:    NewAuthManager(sessionSecret, true, 30*time.Minute),
		log:     logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.loginHandler())
		r.Post("/logout", s.logoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/stats", s.statsHandler())
			r.Route("/users/{tgID}", func(r chi.Router) {
				r.Get("/", s.userGetHandler())
				r.Post("/ban", s.banHandler())
				r.Post("/unban", s.unbanHandler())
				r.Post("/premium", s.grantPremiumHandler())
				r.Delete("/premium", s.revokePremiumHandler())
				r.Post("/sudo", s.setSudoHandler(true))
				r.Delete("/sudo", s.setSudoHandler(false))
			})
		})
	})

	return r
}

// authMiddleware lets requests through with either the static API key or
// a valid session JWT.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if hdr := r.Header.Get("Authorization"); hdr != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}

		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}
