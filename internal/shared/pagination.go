package shared

import (
	"math"
	"net/url"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is the page window requested by a client.
type PageRequest struct {
	Page    int
	PerPage int
}

// PageFromQuery reads page and per_page, falling back to defaults on junk.
func PageFromQuery(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := NewPagination(page, perPage, 0)
	return PageRequest{Page: p.Page, PerPage: p.PerPage}
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}
