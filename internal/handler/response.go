// Package handler provides the HTTP layer of MediaHost.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/service"
)

// writeJSON serializes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the uniform error body used across the API.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": message,
		"state": status,
	})
}

// writeServiceError maps service and domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "There is no user with that username.")
	case errors.Is(err, service.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "That username is already taken.")
	case errors.Is(err, service.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, "The specified username is not acceptable.")
	case errors.Is(err, service.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "The specified password is not acceptable.")
	case errors.Is(err, service.ErrSignupRejected):
		writeError(w, http.StatusForbidden, "Incorrect signup password.")
	case errors.Is(err, service.ErrAPIKeyNotFound):
		writeError(w, http.StatusNotFound, "The specified API key is invalid.")
	case errors.Is(err, service.ErrNotKeyOwner):
		writeError(w, http.StatusForbidden, "You may not perform this action.")
	case errors.Is(err, service.ErrSessionInvalid):
		writeError(w, http.StatusUnauthorized, "The specified session is invalid.")
	case errors.Is(err, service.ErrContentNotFound), errors.Is(err, domain.ErrContentNotFound):
		writeError(w, http.StatusNotFound, "There is no content with that ID.")
	case errors.Is(err, service.ErrNotContentOwner):
		writeError(w, http.StatusForbidden, "You may not perform this action.")
	case errors.Is(err, domain.ErrStreamNotFound):
		// Expired or aborted handles signal the client to restart the upload.
		writeError(w, http.StatusResetContent, "There is no upload stream with that handle.")
	case errors.Is(err, domain.ErrStreamIncomplete):
		writeError(w, http.StatusBadRequest, "The upload stream is not complete.")
	case errors.Is(err, domain.ErrStreamOverCapacity):
		writeError(w, http.StatusRequestEntityTooLarge, "The payload exceeds the declared upload size.")
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, "The upload exceeds your quota.")
	case errors.Is(err, domain.ErrInvalidDeclaredSize):
		writeError(w, http.StatusBadRequest, "The declared upload size is invalid.")
	default:
		writeError(w, http.StatusInternalServerError, "Something went wrong.")
	}
}

// decodeJSON parses the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
