package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	applog "bankops/internal/log"
	"bankops/internal/services"
)

const sessionCookie = "bankops_session"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.trackSession(w, r)

	view := s.newView(r)
	q, err := parseAnalysisQuery(r.URL.Query(), s.analysis.DefaultParams())
	view.apply(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	a, err := s.analysis.Analyze(r.Context(), services.Source{UploadHash: q.Upload}, q.Params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view.setAnalysis(a)
	if id := r.URL.Query().Get("exported"); id != "" {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			view.Notice = "Export #" + id + " queued"
		}
	}
	s.render(w, r, http.StatusOK, view)
}

// trackSession counts a new dashboard visitor once per browser session.
func (s *Server) trackSession(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(sessionCookie); err == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if s.metrics != nil {
		s.metrics.IncrementSessions()
	}
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalysisQuery(r.URL.Query(), s.analysis.DefaultParams())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a, err := s.analysis.Analyze(r.Context(), services.Source{UploadHash: q.Upload}, q.Params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		s.fail(w, r, errUploadTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			s.fail(w, r, err)
			return
		}
		s.fail(w, r, &paramError{Name: "file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.analysis.Ingest(r.Context(), header.Filename, content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Upload stored",
		applog.FieldUploadHash, u.Hash, applog.FieldRows, u.Rows)

	if wantsJSON(r) {
		respondJSON(w, http.StatusCreated, u)
		return
	}
	http.Redirect(w, r, "/?upload="+u.Hash, http.StatusSeeOther)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if !isContentHash(hash) {
		s.fail(w, r, &paramError{Name: "upload", Value: hash})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, &paramError{Name: "form", Value: err.Error()})
		return
	}
	q, err := parseAnalysisQuery(r.Form, s.analysis.DefaultParams())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.analysis.RequestExport(r.Context(), hash, q.Params.Threshold, selectionOnly(q.Params))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		respondJSON(w, http.StatusAccepted, map[string]any{"export_id": id, "status": "pending"})
		return
	}
	v := url.Values{}
	v.Set("upload", hash)
	v.Set("exported", strconv.FormatInt(id, 10))
	http.Redirect(w, r, "/?"+v.Encode(), http.StatusSeeOther)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if limit > 100 {
		limit = 100
	}
	uploads, err := s.uploads.ListUploads(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}
