package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/zombor/superclaims/internal/claim"
	"github.com/zombor/superclaims/internal/extraction"
)

const multipartMemory = 32 << 20

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes {"detail": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Superclaims Backend API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.cfg.ServiceName,
	})
}

// handleProcessClaim accepts one or more files in the multipart field "files".
func (s *Server) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeError(w, http.StatusUnprocessableEntity, "files: field required")
		default:
			slog.Error("Error parsing multipart form", "error", err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("parsing upload: %v", err))
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "files: field required")
		return
	}
	if s.cfg.MaxFiles > 0 && len(headers) > s.cfg.MaxFiles {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("too many files: got %d, limit is %d", len(headers), s.cfg.MaxFiles))
		return
	}

	docs := make([]extraction.RawDocument, 0, len(headers))
	for _, header := range headers {
		doc, err := readUpload(header)
		if err != nil {
			slog.Error("Error reading upload", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		docs = append(docs, doc)
	}

	result, err := s.processor.ProcessClaim(r.Context(), docs)
	if err != nil {
		if errors.Is(err, claim.ErrTooManyFiles) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		slog.Error("Error processing claim", "files", len(docs), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("X-Claim-Id", result.ClaimID)
	writeJSON(w, http.StatusOK, result)
}

func readUpload(header *multipart.FileHeader) (extraction.RawDocument, error) {
	f, err := header.Open()
	if err != nil {
		return extraction.RawDocument{}, fmt.Errorf("opening %s: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return extraction.RawDocument{}, fmt.Errorf("reading %s: %w", header.Filename, err)
	}

	return extraction.RawDocument{
		Filename:    header.Filename,
		Data:        data,
		ContentType: extraction.ContentType(header.Filename, header.Header.Get("Content-Type"), data),
	}, nil
}
