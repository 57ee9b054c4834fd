package api

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginated reports whether the caller asked for the envelope form.
func paginated(r *http.Request) bool {
	q := r.URL.Query()
	return q.Has("page") || q.Has("page_size")
}

// paginate slices items according to page/page_size. Out-of-range pages yield an empty result set.
func paginate[T any](r *http.Request, items []T) Page[T] {
	q := r.URL.Query()
	size := positiveInt(q.Get("page_size"), defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}
	page := positiveInt(q.Get("page"), 1)

	start, end := len(items), len(items)
	// Compare before multiplying so huge page numbers cannot overflow.
	if page-1 <= len(items)/size {
		start = min((page-1)*size, len(items))
		end = min(start+size, len(items))
	}

	out := Page[T]{Count: len(items), Results: append([]T{}, items[start:end]...)}
	if end < len(items) {
		out.Next = pageLink(r, page+1)
	}
	if page > 1 {
		out.Previous = pageLink(r, page-1)
	}
	return out
}

func positiveInt(raw string, fallback int) int {
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func pageLink(r *http.Request, page int) *string {
	u := url.URL{Scheme: requestScheme(r), Host: r.Host, Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// writeList writes a bare array unless pagination was requested.
func writeList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	if paginated(r) {
		writeJSON(w, http.StatusOK, paginate(r, items))
		return
	}
	writeJSON(w, http.StatusOK, items)
}
