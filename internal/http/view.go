package http

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"bankops/internal/core"
	applog "bankops/internal/log"
)

var templateFuncs = template.FuncMap{
	"euros": core.FormatEuros,
	"nullEuros": func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "-"
		}
		return core.FormatEuros(d.Decimal)
	},
	"pct": func(d decimal.NullDecimal) string {
		if !d.Valid {
			return "-"
		}
		return d.Decimal.StringFixed(1) + " %"
	},
	"dateValue": func(d core.Date) string {
		if d.IsZero() {
			return ""
		}
		return d.String()
	},
	"inc": func(n int) int { return n + 1 },
	"dec": func(n int) int { return n - 1 },
}

// dashboardView is the data of index.html.
type dashboardView struct {
	Now         time.Time
	Error       string
	ErrorDetail string
	Notice      string

	Uploads  []core.Upload
	Upload   string
	Analysis *core.Analysis

	ThresholdPercent string
	From, To         string
	ByDate           bool
	Selected         selected
	MaxCategory      string

	query url.Values
}

type selected struct {
	categories, subcategories map[string]bool
}

func (s selected) Category(c string) bool    { return s.categories[c] }
func (s selected) Subcategory(c string) bool { return s.subcategories[c] }

func setOf(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// PageURL links to page n with the current filters.
func (v dashboardView) PageURL(n int) string {
	q := url.Values{}
	for k, vals := range v.query {
		q[k] = append([]string(nil), vals...)
	}
	q.Set("page", strconv.Itoa(n))
	return "/?" + q.Encode()
}

func (s *Server) newView(r *http.Request) dashboardView {
	view := dashboardView{Now: s.now(), query: r.URL.Query()}
	if s.uploads != nil {
		uploads, err := s.uploads.ListUploads(r.Context(), 10)
		if err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to list uploads", applog.FieldError, err)
		}
		view.Uploads = uploads
	}
	return view
}

func (v *dashboardView) apply(q analysisQuery) {
	v.Upload = q.Upload
	v.ThresholdPercent = strconv.FormatFloat(q.ThresholdPercent, 'f', -1, 64)
	v.ByDate = q.Params.ByDate
	if !q.Params.Selection.From.IsZero() {
		v.From = q.Params.Selection.From.String()
	}
	if !q.Params.Selection.To.IsZero() {
		v.To = q.Params.Selection.To.String()
	}
	v.Selected = selected{
		categories:    setOf(q.Params.Selection.Categories),
		subcategories: setOf(q.Params.Selection.Subcategories),
	}
}

func (v *dashboardView) setAnalysis(a *core.Analysis) {
	v.Analysis = a
	maxCat := decimal.Zero
	for _, c := range a.CategoryTotals {
		if c.AmountAbs.GreaterThan(maxCat) {
			maxCat = c.AmountAbs
		}
	}
	v.MaxCategory = maxCat.String()
}

// render executes index.html into a buffer so a template failure can still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, view dashboardView) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", view); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender, applog.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
