package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/service"
)

// APIKeyHandler handles API key routes.
type APIKeyHandler struct {
	keys   *service.APIKeyService
	logger zerolog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys *service.APIKeyService, logger zerolog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		keys:   keys,
		logger: logger.With().Str("handler", "apikey").Logger(),
	}
}

// keyResponse is the public shape of an API key record.
type keyResponse struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"created_at"`
	Rights      []string  `json:"rights"`
}

func toKeyResponse(key *domain.APIKey) keyResponse {
	rights := key.Rights.Rights()
	names := make([]string, 0, len(rights))
	for _, right := range rights {
		names = append(names, right.Name)
	}
	return keyResponse{
		ID:          key.KeyID,
		Description: key.Description,
		CreatedAt:   key.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Rights:      names,
	}
}

// Generate handles POST /api/user/apikeys. A key may only carry rights the
// caller itself holds.
func (h *APIKeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	result, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}
	user, callerRights, _ := auth.Identity(result)

	var req struct {
		Description string   `json:"description"`
		Rights      []string `json:"rights"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "The request body is not valid JSON.")
		return
	}

	var granted domain.RightSet
	for _, name := range req.Rights {
		right, ok := domain.RightByName(name)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown right: "+name)
			return
		}
		if !callerRights.Contains(right) && !auth.IsAdmin(result) {
			writeError(w, http.StatusForbidden, "You may not grant a right you do not hold.")
			return
		}
		granted = granted.With(right)
	}

	out, err := h.keys.Generate(r.Context(), service.GenerateInput{
		UserID:      user.ID,
		Description: req.Description,
		Rights:      granted,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The plaintext token is returned exactly once.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    out.Key.KeyID,
		"token": out.Token,
	})
}

// List handles GET /api/user/apikeys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	keys, err := h.keys.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]keyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, toKeyResponse(key))
	}
	writeJSON(w, http.StatusOK, out)
}

// Expire handles DELETE /api/user/apikeys/{keyId}.
func (h *APIKeyHandler) Expire(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	keyID, err := uuid.Parse(chi.URLParam(r, "keyId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "The specified key ID is invalid.")
		return
	}

	if err := h.keys.Expire(r.Context(), user.ID, keyID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}
