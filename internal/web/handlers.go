package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/nexusaudit/internal/core"
)

// Multipart field names.
const (
	fieldFile  = "file"
	fieldFiles = "files"
	fieldBank  = "bank"
)

var errNoFile = errors.New("no file provided")

// UploadResponse is the single-file import preview.
type UploadResponse struct {
	FileName  string                  `json:"file_name"`
	Attempt   string                  `json:"attempt,omitempty"`
	Documents []core.ImportedDocument `json:"documents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   s.limiter.Status(),
	})
}

// handleUpload imports one file and returns its documents without auditing.
// Attempt reports the encoding and delimiter (or reader) that succeeded.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	files, err := formFiles(r.MultipartForm, fieldFile)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if len(files) == 0 {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}

	f := files[0]
	docs := s.pipeline.Importer.Import(r.Context(), []core.RawFile{f}, nil)
	resp := UploadResponse{FileName: f.Name, Documents: docs}
	if len(docs) == 1 {
		resp.Attempt = docs[0].Attempt
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// parseForm caps the body at the configured upload size and parses it.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("file too large: %w", err)
		}
		return fmt.Errorf("invalid multipart form: %w", err)
	}
	return nil
}

// formFiles reads every upload under field into memory.
func formFiles(form *multipart.Form, field string) ([]core.RawFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	files := make([]core.RawFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		files = append(files, core.NewRawFile(fh.Filename, data))
	}
	return files, nil
}
