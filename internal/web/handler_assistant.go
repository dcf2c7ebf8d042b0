package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/service"
)

const (
	maxJSONBody    = 1 << 20          // 1 MB
	maxReceiptSize = 10 * 1024 * 1024 // 10 MB
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	menu, err := s.assistant.Recommend(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, menu, s.logger)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	var req service.DetailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipe, err := s.assistant.Detail(r.Context(), userFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe, s.logger)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Food string `json:"food"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipe, err := s.assistant.Search(r.Context(), userFrom(r.Context()), req.Food)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe, s.logger)
}

func (s *Server) handleQuick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Chat string `json:"chat"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipe, err := s.assistant.Quick(r.Context(), userFrom(r.Context()), req.Chat)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe, s.logger)
}

// handleScanReceipt accepts a multipart form with the image in field "file".
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize)
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		s.writeError(w, r, domain.WrapError(domain.KindInvalidRequest, "failed to parse form", err))
		return
	}

	var upload *service.ReceiptUpload
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		s.writeError(w, r, domain.WrapError(domain.KindInvalidRequest, "failed to read form file", err))
		return
	default:
		defer closeWithLog(file, "receipt file", s.logger)
		upload = &service.ReceiptUpload{
			Filename:    header.Filename,
			ContentType: uploadContentType(header, file),
			Body:        file,
		}
	}

	list, err := s.assistant.ScanReceipt(r.Context(), userFrom(r.Context()), upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list, s.logger)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	status, err := s.assistant.Quota(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status, s.logger)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.WrapError(domain.KindInvalidRequest, "malformed JSON body", err)
	}
	return nil
}

// uploadContentType trusts a declared image/* type. Anything else, including
// the application/octet-stream most clients send for files, is replaced by
// the type sniffed from the leading bytes when that is a known image format.
func uploadContentType(header *multipart.FileHeader, file multipart.File) string {
	declared := header.Header.Get("Content-Type")
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	head := make([]byte, 512)
	n, err := file.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return declared
	}
	if sniffed, ok := allowedImageMIME(head[:n]); ok {
		return sniffed
	}
	return declared
}

// allowedImageTypes is the set of MIME types recognised by sniffing.
// net/http.DetectContentType handles JPEG, PNG and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniffing
// algorithm (and therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
