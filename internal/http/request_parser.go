package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bankops/internal/analysis"
	"bankops/internal/core"
	"bankops/internal/services"
)

const (
	maxPageSize  = 500
	maxJSONBytes = 1 << 20
)

var errBadParam = errors.New("invalid parameter")

type paramError struct {
	Name  string
	Value string
}

func (e *paramError) Error() string {
	if e.Value == "" {
		return "missing " + e.Name
	}
	return fmt.Sprintf("invalid %s: %q", e.Name, e.Value)
}

func (e *paramError) Unwrap() error {
	return errBadParam
}

// analysisQuery is the parsed form of the dashboard and /api/analysis
// query string.
type analysisQuery struct {
	Upload           string
	ThresholdPercent float64
	Params           services.Params
}

// parseAnalysisQuery reads upload, threshold (percent), from, to (YYYY-MM-DD),
// category and subcategory (repeatable), page, page_size and by_date. Absent
// values keep their defaults.
func parseAnalysisQuery(q url.Values, defaults services.Params) (analysisQuery, error) {
	out := analysisQuery{Params: defaults}
	if out.Params.Page < 1 {
		out.Params.Page = 1
	}

	if v := strings.TrimSpace(q.Get("upload")); v != "" {
		if !isContentHash(v) {
			return out, &paramError{Name: "upload", Value: v}
		}
		out.Upload = v
	}

	out.ThresholdPercent = defaults.Threshold * 100
	if v := strings.TrimSpace(q.Get("threshold")); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return out, &paramError{Name: "threshold", Value: v}
		}
		out.ThresholdPercent = pct
		out.Params.Threshold = pct / 100
	}

	var err error
	if out.Params.Selection.From, err = parseDateParam(q, "from"); err != nil {
		return out, err
	}
	if out.Params.Selection.To, err = parseDateParam(q, "to"); err != nil {
		return out, err
	}
	out.Params.Selection.Categories = nonEmpty(q["category"])
	out.Params.Selection.Subcategories = nonEmpty(q["subcategory"])

	if out.Params.Page, err = parsePositive(q, "page", out.Params.Page); err != nil {
		return out, err
	}
	if out.Params.PageSize, err = parsePositive(q, "page_size", out.Params.PageSize); err != nil {
		return out, err
	}
	if out.Params.PageSize > maxPageSize {
		out.Params.PageSize = maxPageSize
	}

	if v := strings.TrimSpace(q.Get("by_date")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return out, &paramError{Name: "by_date", Value: v}
		}
		out.Params.ByDate = b
	}
	return out, nil
}

func parseDateParam(q url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(core.DateLayout, v)
	if err != nil {
		return core.Date{}, &paramError{Name: name, Value: v}
	}
	return d, nil
}

func parsePositive(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def, &paramError{Name: name, Value: v}
	}
	return n, nil
}

func parseLimit(q url.Values) (int, error) {
	return parsePositive(q, "limit", 10)
}

// nonEmpty keeps the non-blank values. Surrounding spaces are kept since
// category names from the file are matched verbatim.
func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = stripControl(v); strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func isContentHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// selectionOnly keeps the date range of p, which is what an export carries.
func selectionOnly(p services.Params) analysis.Selection {
	return analysis.Selection{From: p.Selection.From, To: p.Selection.To}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			return err
		}
		return &paramError{Name: "request body", Value: err.Error()}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &paramError{Name: "request body", Value: "trailing data"}
	}
	return nil
}

// stripControl removes control characters other than tab and newlines.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
