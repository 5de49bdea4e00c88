package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/scratch/internal/untitledservice"
)

const maxUploadBytes = 10 << 20 // 10 MB

var importExts = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".txt":      {},
}

// ImportHandler turns uploaded text files into untitled copies.
type ImportHandler struct {
	svc *untitledservice.Service
}

// NewImportHandler creates an import handler.
func NewImportHandler(svc *untitledservice.Service) *ImportHandler {
	return &ImportHandler{svc: svc}
}

// checkName validates that the upload is a plain text file name.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("filename is required")
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := importExts[ext]; !ok {
		return fmt.Errorf("unsupported file type: %s", ext)
	}
	return nil
}

// Upload handles POST /api/import (multipart/form-data, field "file",
// optional field "associated_path").
//
//	@Summary		Import a text file as a new untitled copy
//	@Tags			untitled
//	@Accept			mpfd
//	@Produce		json
//	@Param			file			formData	file	true	"Markdown or text file"
//	@Param			associated_path	formData	string	false	"Save target"
//	@Success		201		{object}	UntitledDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	if err := checkName(header.Filename); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	req := CreateUntitledRequest{
		AssociatedPath: r.FormValue("associated_path"),
		Content:        string(data),
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	d, err := h.svc.Create(r.Context(), untitledservice.CreateInput{
		AssociatedPath: req.AssociatedPath,
		Content:        req.Content,
	})
	if err != nil {
		writeError(w, "import untitled", header.Filename, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
