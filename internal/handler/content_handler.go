package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/service"
)

// ContentHandler handles stored content routes.
type ContentHandler struct {
	contents *service.ContentService
	users    *service.UserService
	gate     *auth.Gate

	// fallbackUser is the account anonymous uploads are attributed to.
	// Empty when anonymous uploads are disabled.
	fallbackUser string

	logger zerolog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(contents *service.ContentService, users *service.UserService, gate *auth.Gate, fallbackUser string, logger zerolog.Logger) *ContentHandler {
	return &ContentHandler{
		contents:     contents,
		users:        users,
		gate:         gate,
		fallbackUser: fallbackUser,
		logger:       logger.With().Str("handler", "content").Logger(),
	}
}

// contentResponse is the public shape of a content record.
type contentResponse struct {
	ContentID string `json:"content_id"`
	FileName  string `json:"file_name"`
	Privacy   string `json:"privacy"`
	CreatedAt string `json:"created_at"`
}

func toContentResponse(c *domain.Content) contentResponse {
	return contentResponse{
		ContentID: c.ContentID,
		FileName:  c.FileName,
		Privacy:   c.Privacy.String(),
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// viewer resolves the caller's identity when credentials are present. The
// serving routes are public, so a missing header just means anonymous.
func (h *ContentHandler) viewer(r *http.Request) (viewerID int64, canViewPrivate bool) {
	p := auth.FromRequest(r)
	if p.Scheme == auth.SchemeNone {
		return 0, false
	}

	result := h.gate.Identify(r.Context(), p)
	user, rights, ok := auth.Identity(result)
	if !ok {
		return 0, false
	}
	return user.ID, rights.Contains(domain.RightViewPrivateContent)
}

// Serve handles GET /{contentId}, streaming the stored bytes. Private
// content is reported as absent to viewers without access.
func (h *ContentHandler) Serve(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentId")

	viewerID, canViewPrivate := h.viewer(r)
	content, err := h.contents.Get(r.Context(), contentID, viewerID, canViewPrivate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `inline; filename="`+content.FileName+`"`)

	if err := h.contents.Serve(r.Context(), contentID, w); err != nil {
		// Headers are already out; all we can do is log and stop.
		h.logger.Error().Err(err).Str("content_id", contentID).Msg("Failed to serve content")
	}
}

// Meta handles GET /api/file/info/{contentId}, returning the metadata record.
func (h *ContentHandler) Meta(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentId")

	viewerID, canViewPrivate := h.viewer(r)
	content, err := h.contents.Get(r.Context(), contentID, viewerID, canViewPrivate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	size, err := h.contents.Size(r.Context(), contentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_id": content.ContentID,
		"file_name":  content.FileName,
		"privacy":    content.Privacy.String(),
		"created_at": content.CreatedAt,
		"size":       size,
	})
}

// Options handles POST /api/file/options/{contentId}.
func (h *ContentHandler) Options(w http.ResponseWriter, r *http.Request) {
	result, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}
	user, _, _ := auth.Identity(result)

	var req struct {
		Privacy  *string `json:"privacy"`
		FileName *string `json:"file_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "The request body is not valid JSON.")
		return
	}

	in := service.ModifyOptionsInput{
		ContentID: chi.URLParam(r, "contentId"),
		UserID:    user.ID,
		Admin:     auth.IsAdmin(result),
		FileName:  req.FileName,
	}
	if req.Privacy != nil {
		privacy := domain.PrivacyFromName(*req.Privacy)
		in.Privacy = &privacy
	}

	content, err := h.contents.ModifyOptions(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toContentResponse(content))
}

// Delete handles DELETE /api/file/{contentId}.
func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}
	user, _, _ := auth.Identity(result)

	contentID := chi.URLParam(r, "contentId")
	if err := h.contents.Delete(r.Context(), contentID, user.ID, auth.IsAdmin(result)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}

// Query handles GET /api/file/query, listing the caller's uploads.
func (h *ContentHandler) Query(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	contents, err := h.contents.Query(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]contentResponse, 0, len(contents))
	for _, content := range contents {
		out = append(out, toContentResponse(content))
	}
	writeJSON(w, http.StatusOK, out)
}

// UploadWhole handles POST /api/file/upload: the single-request path for
// files small enough to not need chunking. File name and privacy arrive as
// query parameters, the body is the raw payload.
func (h *ContentHandler) UploadWhole(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		if h.fallbackUser == "" {
			writeError(w, http.StatusUnauthorized, "Improper authentication header.")
			return
		}

		// Anonymous upload: attribute the content to the configured account.
		fallback, err := h.users.GetByUsername(r.Context(), h.fallbackUser)
		if err != nil {
			h.logger.Error().Err(err).Str("username", h.fallbackUser).Msg("Anonymous upload fallback user missing")
			writeError(w, http.StatusInternalServerError, "Something went wrong.")
			return
		}
		user = fallback
	}

	// An absent name falls back to "<contentId>.unknown" downstream.
	fileName := r.URL.Query().Get("name")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read the request body.")
		return
	}

	content, err := h.contents.UploadWhole(r.Context(), service.UploadWholeInput{
		Owner:    user,
		FileName: fileName,
		Privacy:  domain.PrivacyFromName(r.URL.Query().Get("privacy")),
		Payload:  payload,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toContentResponse(content))
}
