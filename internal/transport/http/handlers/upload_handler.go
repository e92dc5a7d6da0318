package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/domain"
)

const maxUploadSize = 20 << 20 // 20 MiB

type UploadHandler struct {
	uploadDir string
	log       *slog.Logger
}

func NewUploadHandler(uploadDir string, log *slog.Logger) *UploadHandler {
	return &UploadHandler{uploadDir: uploadDir, log: log}
}

// Upload stores a file attachment and reports the URL plus the message
// type a client should use when sending it. The content type is
// sniffed from the bytes, not trusted from the request.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Missing or oversized file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Could not read file")
		return
	}

	mtype := mimetype.Detect(data)

	ext := mtype.Extension()
	if ext == "" {
		ext = filepath.Ext(header.Filename)
	}
	name := uuid.NewString() + ext

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error("creating upload dir", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	if err := os.WriteFile(filepath.Join(h.uploadDir, name), data, 0o644); err != nil {
		h.log.Error("writing upload", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	messageType := domain.MessageTypeFile
	if strings.HasPrefix(mtype.String(), "image/") {
		messageType = domain.MessageTypeImage
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"fileUrl":     "/uploads/" + name,
		"fileName":    header.Filename,
		"mimeType":    mtype.String(),
		"messageType": messageType,
	})
}
