package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rescanio/rescan/internal/enhance"
	"github.com/rescanio/rescan/internal/raster"
	"github.com/rescanio/rescan/internal/render"
)

// handleRenderPage rasterizes one page at the requested DPI.
func (s *Server) handleRenderPage(w http.ResponseWriter, r *http.Request) {
	sess, pageIndex, ok := s.sessionPage(w, r)
	if !ok {
		return
	}

	opts := render.DefaultOptions()
	opts.DPI = s.cfg.DefaultDPI
	opts.Quality = s.cfg.DefaultJPEGQual

	q := r.URL.Query()
	if v := q.Get("dpi"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			jsonError(w, "invalid dpi: "+v, http.StatusBadRequest)
			return
		}
		opts.DPI = n
	}
	if v := q.Get("color_mode"); v != "" {
		opts.ColorMode = render.ColorMode(v)
	}
	if v := q.Get("format"); v != "" {
		opts.Format = raster.Format(v)
	}
	if v := q.Get("quality"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "invalid quality: "+v, http.StatusBadRequest)
			return
		}
		opts.Quality = n
	}

	s.renderAndWrite(w, sess, pageIndex, opts)
}

// handlePreviewPage renders a page at a DPI chosen to fit the requested
// pixel box, capped well below print resolution.
func (s *Server) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	sess, pageIndex, ok := s.sessionPage(w, r)
	if !ok {
		return
	}

	maxW, maxH := 800, 1100
	q := r.URL.Query()
	if v := q.Get("max_w"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxW = n
		}
	}
	if v := q.Get("max_h"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxH = n
		}
	}

	bounds, err := sess.Bounds()
	if err != nil {
		jsonError(w, err.Error(), statusForDocErr(err))
		return
	}
	opts := render.PreviewOptions(bounds[pageIndex].Bounds, maxW, maxH)
	s.renderAndWrite(w, sess, pageIndex, opts)
}

func (s *Server) renderAndWrite(w http.ResponseWriter, sess *Session, pageIndex int, opts render.Options) {
	if sess.Doc.NeedsPassword() {
		jsonError(w, "document is password protected", http.StatusLocked)
		return
	}
	bounds, err := sess.Bounds()
	if err != nil {
		jsonError(w, err.Error(), statusForDocErr(err))
		return
	}
	b := bounds[pageIndex].Bounds
	im, err := render.Render(sess.Doc, pageIndex, b, opts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ct := "image/png"
	if im.Format == raster.FormatJPEG {
		ct = "image/jpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Page-Width-Pt", strconv.FormatFloat(b.WidthPt(), 'f', -1, 64))
	w.Header().Set("X-Page-Height-Pt", strconv.FormatFloat(b.HeightPt(), 'f', -1, 64))
	w.WriteHeader(http.StatusOK)
	w.Write(im.Data)
}

// sessionPage resolves docID and pageIndex route params and bounds-checks
// the page index.
func (s *Server) sessionPage(w http.ResponseWriter, r *http.Request) (*Session, int, bool) {
	sess := s.session(w, r)
	if sess == nil {
		return nil, 0, false
	}
	idxStr := chi.URLParam(r, "pageIndex")
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		jsonError(w, "invalid page index: "+idxStr, http.StatusBadRequest)
		return nil, 0, false
	}
	if sess.Doc.NeedsPassword() {
		jsonError(w, "document is password protected", http.StatusLocked)
		return nil, 0, false
	}
	if idx < 0 || idx >= sess.Doc.PageCount() {
		jsonError(w, "page index out of range", http.StatusNotFound)
		return nil, 0, false
	}
	return sess, idx, true
}

// handleProcessImage runs the enhancement chain over a standalone image
// without any document involved.
func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, "image is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, ok := s.readAllCapped(w, file)
	if !ok {
		return
	}

	params, ok := s.resolveParams(w, r.FormValue("params"), r.FormValue("preset"))
	if !ok {
		return
	}

	im := &raster.Image{Format: raster.FormatPNG, Data: data}
	out, warnings, err := enhance.Process(im, params)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	resp := map[string]any{
		"image":  base64.StdEncoding.EncodeToString(out.Data),
		"format": string(out.Format),
	}
	if len(warnings) > 0 {
		ws := make([]string, len(warnings))
		for i, warn := range warnings {
			ws[i] = warn.String()
		}
		resp["warnings"] = ws
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveParams merges an optional preset name with an optional inline JSON
// params blob, inline values taking precedence.
func (s *Server) resolveParams(w http.ResponseWriter, rawParams, preset string) (enhance.Params, bool) {
	params := enhance.Defaults()
	if preset != "" {
		p, ok := s.presets[preset]
		if !ok {
			jsonError(w, "unknown preset: "+preset, http.StatusBadRequest)
			return params, false
		}
		params = p
	}
	if rawParams != "" {
		if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
			jsonError(w, "invalid params: "+err.Error(), http.StatusBadRequest)
			return params, false
		}
	}
	return params, true
}
