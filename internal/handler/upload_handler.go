package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/upload"
)

// UploadHandler handles the chunked upload routes.
type UploadHandler struct {
	registry *upload.Registry
	logger   zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(registry *upload.Registry, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		registry: registry,
		logger:   logger.With().Str("handler", "upload").Logger(),
	}
}

// stream fetches the live stream for the handle in the URL and enforces
// that the caller owns it.
func (h *UploadHandler) stream(w http.ResponseWriter, r *http.Request) (*upload.Stream, string, bool) {
	handle := chi.URLParam(r, "handle")

	result, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return nil, "", false
	}
	user, _, _ := auth.Identity(result)

	stream, err := h.registry.Get(handle)
	if err != nil {
		writeServiceError(w, err)
		return nil, "", false
	}

	if stream.UserID() != user.ID && !auth.IsAdmin(result) {
		writeError(w, http.StatusForbidden, "You may not perform this action.")
		return nil, "", false
	}

	return stream, handle, true
}

// Begin handles POST /api/file/upload/begin.
func (h *UploadHandler) Begin(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	var req struct {
		FileName string `json:"file_name"`
		Privacy  string `json:"privacy"`
		Total    int64  `json:"total"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "The request body is not valid JSON.")
		return
	}

	out, err := h.registry.Begin(r.Context(), upload.BeginInput{
		Owner:         user,
		FileName:      req.FileName,
		Privacy:       domain.PrivacyFromName(req.Privacy),
		DeclaredTotal: req.Total,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"handle":     out.Handle,
		"content_id": out.ContentID,
	})
}

// Upstream handles POST /api/file/upload/upstream/{handle}. The raw request
// body is the next run of bytes for the stream.
func (h *UploadHandler) Upstream(w http.ResponseWriter, r *http.Request) {
	stream, handle, ok := h.stream(w, r)
	if !ok {
		return
	}

	remaining := stream.DeclaredTotal() - stream.Received()
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, remaining+1))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "The payload exceeds the declared upload size.")
		return
	}

	if err := h.registry.Push(r.Context(), handle, payload); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received": stream.Received(),
		"total":    stream.DeclaredTotal(),
	})
}

// Finish handles POST /api/file/upload/finish/{handle}.
func (h *UploadHandler) Finish(w http.ResponseWriter, r *http.Request) {
	_, handle, ok := h.stream(w, r)
	if !ok {
		return
	}

	content, err := h.registry.Finish(r.Context(), handle)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"content_id": content.ContentID,
		"file_name":  content.FileName,
		"privacy":    content.Privacy.String(),
	})
}

// Clear handles POST /api/file/upload/clear/{handle}. Rewinds the stream to
// the given chunk index so the client can retransmit from there.
func (h *UploadHandler) Clear(w http.ResponseWriter, r *http.Request) {
	stream, _, ok := h.stream(w, r)
	if !ok {
		return
	}

	sinceIndex := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "The since index is invalid.")
			return
		}
		sinceIndex = parsed
	}

	if err := stream.Clear(r.Context(), int32(sinceIndex)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received": stream.Received(),
		"total":    stream.DeclaredTotal(),
	})
}

// Abort handles POST /api/file/upload/abort/{handle}. Aborting a handle that
// is no longer live succeeds.
func (h *UploadHandler) Abort(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Improper authentication header.")
		return
	}

	handle := chi.URLParam(r, "handle")
	if stream, err := h.registry.Get(handle); err == nil {
		result, _ := auth.FromContext(r.Context())
		if stream.UserID() != user.ID && !auth.IsAdmin(result) {
			writeError(w, http.StatusForbidden, "You may not perform this action.")
			return
		}
	}

	if err := h.registry.Abort(r.Context(), handle); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"state": http.StatusOK})
}

// Info handles GET /api/file/upload/info/{handle}, reporting stream progress.
func (h *UploadHandler) Info(w http.ResponseWriter, r *http.Request) {
	stream, _, ok := h.stream(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_id": stream.ContentID(),
		"file_name":  stream.FileName(),
		"privacy":    stream.Privacy().String(),
		"received":   stream.Received(),
		"total":      stream.DeclaredTotal(),
		"finished":   stream.IsFinished(),
	})
}
