package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/service"
)

// UserHandler handles account routes.
type UserHandler struct {
	users  *service.UserService
	logger zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("handler", "user").Logger(),
	}
}

// userResponse is the public shape of an account.
type userResponse struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	CreatedAt      string `json:"created_at"`
	MaxFileUpload  int64  `json:"max_file_upload"`
	MaxTotalUpload int64  `json:"max_total_upload"`
}

// Create handles POST /api/user/create. The only unauthenticated mutation
// in the API; signup may still be gated by a shared signup password.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username       string `json:"username"`
		Password       string `json:"password"`
		SignupPassword string `json:"signup_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "The request body is not valid JSON.")
		return
	}

	out, err := h.users.Create(r.Context(), service.CreateUserInput{
		Username:       req.Username,
		Password:       req.Password,
		SignupPassword: req.SignupPassword,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The TOTP secret is returned exactly once, at signup.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         out.User.ID,
		"username":   out.User.Username,
		"otp_secret": out.OTPSecret,
	})
}

// Info handles GET /api/user/info for the authenticated account.
func (h *UserHandler) Info(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	used, err := h.users.BytesUploaded(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":               user.ID,
		"username":         user.Username,
		"created_at":       user.CreatedAt,
		"max_file_upload":  user.MaxFileUpload,
		"max_total_upload": user.MaxTotalUpload,
		"bytes_uploaded":   used,
	})
}

// ChangeUsername handles POST /api/user/username.
func (h *UserHandler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "The request body is not valid JSON.")
		return
	}

	if err := h.users.ChangeUsername(r.Context(), user.ID, req.Username); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}

// ResetPassword handles POST /api/user/password. The route is gated on a
// right that demands step-up OTP verification.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "The request body is not valid JSON.")
		return
	}

	if err := h.users.ResetPassword(r.Context(), user.ID, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}

// DeleteAccount handles DELETE /api/user. Removes the account together with
// its API keys, content metadata, and stored chunks.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	if err := h.users.DeleteAccount(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.logger.Info().Int64("user_id", user.ID).Msg("Account deleted")
	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}
