package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/scratch/internal/checksum"
	"github.com/starford/scratch/internal/untitledservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *untitledservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *untitledservice.Service) *Handler {
	return &Handler{svc: svc}
}

// untitledKey extracts the copy key from the URL.
// Supports encoded slashes for associated paths (e.g. notes%2Fplan.md).
func untitledKey(r *http.Request) string {
	raw := chi.URLParam(r, "key")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListUntitled handles GET /api/untitled.
//
//	@Summary		List live untitled copies
//	@Tags			untitled
//	@Produce		json
//	@Success		200	{object}	UntitledListResponse
//	@Security		BearerAuth
//	@Router			/untitled [get]
func (h *Handler) ListUntitled(w http.ResponseWriter, r *http.Request) {
	items := h.svc.List(r.Context())
	writeJSON(w, http.StatusOK, UntitledListResponse{
		Untitled: items,
		Total:    len(items),
	})
}

// CreateUntitled handles POST /api/untitled.
//
//	@Summary		Create an untitled copy
//	@Tags			untitled
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateUntitledRequest	true	"Copy to create"
//	@Success		201		{object}	UntitledDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled [post]
func (h *Handler) CreateUntitled(w http.ResponseWriter, r *http.Request) {
	var req CreateUntitledRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.svc.Create(r.Context(), untitledservice.CreateInput{
		AssociatedPath: req.AssociatedPath,
		Content:        req.Content,
		TypeID:         req.TypeID,
	})
	if err != nil {
		writeError(w, "create untitled", req.AssociatedPath, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetUntitled handles GET /api/untitled/{key}.
//
//	@Summary		Get an untitled copy, resolving it if needed
//	@Tags			untitled
//	@Produce		json
//	@Param			key	path		string	true	"Copy key"
//	@Success		200	{object}	UntitledDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key} [get]
func (h *Handler) GetUntitled(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	d, err := h.svc.Get(r.Context(), key)
	if err != nil {
		writeError(w, "get untitled", key, err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// UpdateContent handles PUT /api/untitled/{key}/content.
//
//	@Summary		Replace or append content with optimistic concurrency
//	@Tags			untitled
//	@Accept			json
//	@Produce		json
//	@Param			key			path	string					true	"Copy key"
//	@Param			If-Match	header	string					false	"SHA-256 checksum of the current content"
//	@Param			body		body	UpdateContentRequest	true	"Edit"
//	@Success		200		{object}	UntitledDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key}/content [put]
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	var req UpdateContentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	d, err := h.svc.Edit(r.Context(), key, req.Mode, req.Content, ifMatch)
	if err != nil {
		writeError(w, "update untitled", key, err)
		return
	}
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
	writeJSON(w, http.StatusOK, d)
}

// ResolveUntitled handles POST /api/untitled/{key}/resolve.
//
//	@Summary		Resolve an untitled copy
//	@Tags			untitled
//	@Produce		json
//	@Param			key	path		string	true	"Copy key"
//	@Success		200	{object}	UntitledDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key}/resolve [post]
func (h *Handler) ResolveUntitled(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	d, err := h.svc.Resolve(r.Context(), key)
	if err != nil {
		writeError(w, "resolve untitled", key, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetBackup handles GET /api/untitled/{key}/backup.
//
//	@Summary		Get the backup payload of a copy
//	@Tags			untitled
//	@Produce		json
//	@Param			key	path		string	true	"Copy key"
//	@Success		200	{object}	BackupResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key}/backup [get]
func (h *Handler) GetBackup(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	data, err := h.svc.Backup(r.Context(), key)
	if err != nil {
		writeError(w, "backup untitled", key, err)
		return
	}
	writeJSON(w, http.StatusOK, BackupResponse{
		Key:      key,
		Content:  string(data),
		Checksum: checksum.Sum(data),
	})
}

// SaveUntitled handles POST /api/untitled/{key}/save.
//
//	@Summary		Save a copy into the vault and discard it
//	@Tags			untitled
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string		true	"Copy key"
//	@Param			body	body		SaveRequest	false	"Target"
//	@Success		200		{object}	SaveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key}/save [post]
func (h *Handler) SaveUntitled(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	var req SaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Save(r.Context(), key, req.Path, req.Overwrite)
	if err != nil {
		writeError(w, "save untitled", key, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{
		Path:     res.Path,
		Checksum: res.Checksum,
		Bytes:    res.Bytes,
	})
}

// RevertUntitled handles POST /api/untitled/{key}/revert.
//
//	@Summary		Revert a copy, dropping its content and backup
//	@Tags			untitled
//	@Param			key	path	string	true	"Copy key"
//	@Success		204	"Copy reverted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key}/revert [post]
func (h *Handler) RevertUntitled(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	if err := h.svc.Revert(r.Context(), key); err != nil {
		writeError(w, "revert untitled", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DisposeUntitled handles DELETE /api/untitled/{key}.
//
//	@Summary		Close a copy; a dirty copy keeps its backup
//	@Tags			untitled
//	@Param			key	path	string	true	"Copy key"
//	@Success		204	"Copy disposed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/untitled/{key} [delete]
func (h *Handler) DisposeUntitled(w http.ResponseWriter, r *http.Request) {
	key := untitledKey(r)
	if err := h.svc.Dispose(r.Context(), key); err != nil {
		writeError(w, "dispose untitled", key, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
