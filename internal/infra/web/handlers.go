package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"telegram-secret-relay/internal/domain"
	"telegram-secret-relay/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.apiKey == "" || req.APIKey != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.statsUC.GetStats(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("stats endpoint failed")
			http.Error(w, "Failed to get stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func tgIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tgID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

func (s *Server) userGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := tgIDParam(r)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		user, err := s.userUC.GetByTelegramID(r.Context(), tgID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get user", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// adminResult maps usecase errors to HTTP statuses and writes the user.
func (s *Server) adminResult(w http.ResponseWriter, u *model.User, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, u)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, "Action not allowed for this target", http.StatusForbidden)
	default:
		s.log.Error().Err(err).Msg("admin endpoint failed")
		http.Error(w, "Action failed", http.StatusInternalServerError)
	}
}

func (s *Server) banHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := tgIDParam(r)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		// The HTTP panel acts with the owner's authority; it is already
		// gated by the API key.
		u, err := s.adminUC.Ban(r.Context(), s.ownerID, tgID, req.Reason)
		s.adminResult(w, u, err)
	}
}

func (s *Server) unbanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := tgIDParam(r)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		u, err := s.adminUC.Unban(r.Context(), s.ownerID, tgID)
		s.adminResult(w, u, err)
	}
}

func (s *Server) grantPremiumHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := tgIDParam(r)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		var req struct {
			Days int `json:"days"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		u, err := s.adminUC.GrantPremium(r.Context(), s.ownerID, tgID, req.Days)
		s.adminResult(w, u, err)
	}
}

func (s *Server) revokePremiumHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := tgIDParam(r)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		u, err := s.adminUC.RevokePremium(r.Context(), s.ownerID, tgID)
		s.adminResult(w, u, err)
	}
}

func (s *Server) setSudoHandler(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := tgIDParam(r)
		if err != nil {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
			return
		}
		u, err := s.adminUC.SetSudo(r.Context(), s.ownerID, tgID, on)
		s.adminResult(w, u, err)
	}
}
