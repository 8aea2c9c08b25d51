// Package httputil holds small helpers shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// maxBodyBytes bounds request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes a single JSON document from body into dst. Numbers are kept as
// json.Number so commission amounts can be validated without float rounding.
func DecodeJSON(body io.Reader, dst any) error {
	if body == nil {
		return errors.New("empty request body")
	}
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON document")
	}
	return nil
}

// RespondJSON writes payload with status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Pagination is a page request parsed from the query string.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages computes the page count for total rows.
func (p Pagination) TotalPages(total int64) int64 {
	if p.PageSize <= 0 {
		return 0
	}
	return (total + int64(p.PageSize) - 1) / int64(p.PageSize)
}

// ParsePagination reads page and page_size, defaulting to 1 and 20 and capping the size at 100.
func ParsePagination(r *http.Request) Pagination {
	p := Pagination{Page: 1, PageSize: 20}

	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if parsed, err := strconv.Atoi(pageParam); err == nil && parsed > 0 {
			p.Page = parsed
		}
	}

	if sizeParam := r.URL.Query().Get("page_size"); sizeParam != "" {
		if parsed, err := strconv.Atoi(sizeParam); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			p.PageSize = parsed
		}
	}
	return p
}
