package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/report/excel"
)

const (
	defaultSearchListLimit = 50
	defaultExportLimit     = 1000
)

func (rt *Router) listSearches(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultSearchListLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := rt.audit.ListSearchEvents(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": events, "total": len(events)})
}

func (rt *Router) exportSearches(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultExportLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := rt.audit.ListSearchEvents(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Buffer so a rendering failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := excel.WriteSearchEvents(&buf, events); err != nil {
		writeError(w, r, err)
		return
	}
	filename := fmt.Sprintf("searches-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", excel.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse limit", errors.New("limit must be a positive integer"))
	}
	return n, nil
}
