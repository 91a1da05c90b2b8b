package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/service"
)

// SessionHandler handles session routes.
type SessionHandler struct {
	sessions *service.SessionService
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With().Str("handler", "session").Logger(),
	}
}

// Generate handles POST /api/user/sessions. Typically reached with Basic
// credentials, which grant exactly this one right.
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	out, err := h.sessions.Generate(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":         out.Token,
		"refresh_token": out.RefreshToken,
		"expires_at":    out.ExpiresAt,
	})
}

// Refresh handles POST /api/user/sessions/refresh. The presented bearer
// token may already be past its expiry; only the embedded refresh grant has
// to still be honored, so this route carries no rights gate.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p := auth.FromRequest(r)
	if p.Scheme != auth.SchemeBearer || p.Token == "" {
		writeError(w, http.StatusBadRequest, "Improper authentication header.")
		return
	}

	out, err := h.sessions.Refresh(r.Context(), p.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":         out.Token,
		"refresh_token": out.RefreshToken,
		"expires_at":    out.ExpiresAt,
	})
}

// Expire handles DELETE /api/user/sessions: it revokes the refresh grant of
// the session the caller presented.
func (h *SessionHandler) Expire(w http.ResponseWriter, r *http.Request) {
	result, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	session, ok := result.(auth.SuccessSession)
	if !ok {
		writeError(w, http.StatusBadRequest, "Only a session may expire itself.")
		return
	}

	if err := h.sessions.Expire(r.Context(), session.Claims); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}

// ExpireByToken handles DELETE /api/user/sessions/{refreshToken}, revoking
// one of the caller's listed refresh grants.
func (h *SessionHandler) ExpireByToken(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	refreshToken := chi.URLParam(r, "refreshToken")
	if err := h.sessions.ExpireByToken(r.Context(), user.ID, refreshToken); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}

// List handles GET /api/user/sessions, returning the caller's live refresh
// grants.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	grants, err := h.sessions.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(grants))
	for _, grant := range grants {
		out = append(out, map[string]interface{}{
			"refresh_token": grant.Token,
			"issued_at":     grant.IssuedAt,
			"expires_at":    grant.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
