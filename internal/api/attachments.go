package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/workspace"
)

const maxUploadBytes = 50 << 20 // 50 MB

// MediaHandler serves library media and accepts media uploads.
type MediaHandler struct {
	svc        *workspace.Service
	scratchDir string
}

// NewMediaHandler creates a handler that stages uploads under scratchDir.
func NewMediaHandler(svc *workspace.Service, scratchDir string) *MediaHandler {
	return &MediaHandler{svc: svc, scratchDir: scratchDir}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) of an importable media type.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if kind, ok := library.KindForFile(cleaned); !ok || kind == library.KindSymbol {
		return "", fmt.Errorf("unsupported media type: %s", name)
	}
	return cleaned, nil
}

// ServeFile handles GET /api/media/*.
//
//	@Summary		Download the file of a bitmap or sound item
//	@Tags			media
//	@Param			name	path	string	true	"Item name"
//	@Success		200		"Media bytes"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/media/{name} [get]
func (h *MediaHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := itemName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	data, file, err := h.svc.Media(r.Context(), name)
	if err != nil {
		writeError(w, "serve media", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(file)))
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Upload handles POST /api/media (multipart/form-data, field "file").
// The optional "name" field sets the qualified item name and "overwrite"
// replaces an existing item of the same kind.
//
//	@Summary		Import an uploaded bitmap or sound
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Media file"
//	@Param			name		formData	string	false	"Item name"
//	@Param			overwrite	formData	bool	false	"Replace an existing item"
//	@Success		201			{object}	MediaUploadResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/media [post]
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	filename, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	// Stage the upload under its own name so the import derives kind and
	// item name from it.
	dir, err := os.MkdirTemp(h.scratchDir, "xflkit-upload-")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create upload dir"))
		return
	}
	defer os.RemoveAll(dir)

	staged := filepath.Join(dir, filename)
	dst, err := os.Create(staged)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}
	if err := dst.Close(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	overwrite := r.FormValue("overwrite") == "true"
	it, err := h.svc.ImportFile(r.Context(), staged, r.FormValue("name"), overwrite)
	if err != nil {
		writeError(w, "upload media", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}
