package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rescanio/rescan/internal/document"
	"github.com/rescanio/rescan/internal/page"
)

type boundsEntry struct {
	PageIndex int         `json:"page_index"`
	WidthPt   float64     `json:"width_pt"`
	HeightPt  float64     `json:"height_pt"`
	Bounds    page.Bounds `json:"bounds"`
	Fallback  bool        `json:"fallback,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

func boundsEntries(results []page.BoundsResult) []boundsEntry {
	out := make([]boundsEntry, len(results))
	for i, br := range results {
		out[i] = boundsEntry{
			PageIndex: br.PageIndex,
			WidthPt:   br.Bounds.WidthPt(),
			HeightPt:  br.Bounds.HeightPt(),
			Bounds:    br.Bounds,
			Fallback:  br.Fallback,
			Reason:    br.Reason,
		}
	}
	return out
}

// handleOpenDocument uploads a PDF and opens a session. If the document is
// password protected the session is still created; page operations stay
// locked until /password succeeds.
func (s *Server) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	doc, err := document.Open(data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	sess := &Session{
		ID:       NewSessionID(data, filename),
		Filename: filename,
		Doc:      doc,
	}
	s.sessions.Put(sess)

	resp := map[string]any{
		"document_id":    sess.ID,
		"filename":       filename,
		"needs_password": doc.NeedsPassword(),
	}
	if !doc.NeedsPassword() {
		bounds, err := sess.Bounds()
		if err != nil {
			s.sessions.Delete(sess.ID)
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		resp["page_count"] = doc.PageCount()
		resp["bounds"] = boundsEntries(bounds)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleAuthenticate retries a password against a locked session. A wrong
// password leaves the session usable for another attempt.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ok, err := sess.Doc.Authenticate(req.Password)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}

	bounds, err := sess.Bounds()
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"page_count": sess.Doc.PageCount(),
		"bounds":     boundsEntries(bounds),
	})
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	bounds, err := sess.Bounds()
	if err != nil {
		jsonError(w, err.Error(), statusForDocErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page_count": sess.Doc.PageCount(),
		"bounds":     boundsEntries(bounds),
	})
}

func (s *Server) handleCloseDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docID")
	s.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the docID route param, writing the error response itself
// when the session is missing.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	id := chi.URLParam(r, "docID")
	sess := s.sessions.Get(id)
	if sess == nil {
		jsonError(w, "document session not found", http.StatusNotFound)
		return nil
	}
	return sess
}

// readUpload parses a capped multipart upload and returns the PDF bytes.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, filename string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	data, ok = s.readAllCapped(w, file)
	if !ok {
		return nil, "", false
	}
	return data, sanitizeFilename(header.Filename), true
}

func (s *Server) readAllCapped(w http.ResponseWriter, file multipart.File) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return data, true
}

func statusForDocErr(err error) int {
	var pwErr *document.PasswordError
	if errors.As(err, &pwErr) {
		return http.StatusLocked
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
