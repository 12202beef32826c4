package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// criteriaFromQuery reads keywords, location, limit, page and nocache.
// Bounds are applied later by SearchCriteria.Normalize.
func criteriaFromQuery(r *http.Request) (domain.SearchCriteria, error) {
	q := r.URL.Query()
	c := domain.SearchCriteria{
		Keywords: strings.TrimSpace(q.Get("keywords")),
		Location: strings.TrimSpace(q.Get("location")),
	}

	var err error
	if c.Limit, err = intParam(q.Get("limit")); err != nil {
		return c, fmt.Errorf("limit: %w", err)
	}
	if c.Page, err = intParam(q.Get("page")); err != nil {
		return c, fmt.Errorf("page: %w", err)
	}
	if v := q.Get("nocache"); v != "" {
		if c.BypassCache, err = strconv.ParseBool(v); err != nil {
			return c, fmt.Errorf("nocache: %w", err)
		}
	}
	return c, nil
}

// criteriaFromRequest merges an optional JSON body over the query string.
func criteriaFromRequest(r *http.Request) (domain.SearchCriteria, error) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		return c, err
	}
	if r.Body == nil {
		return c, nil
	}

	var body domain.SearchCriteria
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	switch err := dec.Decode(&body); {
	case errors.Is(err, io.EOF):
		return c, nil
	case err != nil:
		return c, fmt.Errorf("body: %w", err)
	}

	if body.Keywords != "" {
		c.Keywords = body.Keywords
	}
	if body.Location != "" {
		c.Location = body.Location
	}
	if body.Limit != 0 {
		c.Limit = body.Limit
	}
	if body.Page != 0 {
		c.Page = body.Page
	}
	return c, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must be >= 0, got %d", n)
	}
	return n, nil
}
