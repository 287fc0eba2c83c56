package shared

import (
	"math"
	"strconv"
)

// DefaultPageLimit is used when the caller omits limit.
const DefaultPageLimit = 50

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// PageRequest is a normalised 1-indexed page request.
type PageRequest struct {
	Page  int
	Limit int
}

// maxOffset bounds Offset so the SQL OFFSET never overflows.
const maxOffset = math.MaxInt32

// NewPageRequest clamps page and limit into a usable window. Pages past
// maxOffset rows are clamped to the last addressable page, which is empty
// for any realistic table.
func NewPageRequest(page, limit, maxLimit int) PageRequest {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if limit > maxOffset {
		limit = maxOffset
	}
	if lastPage := maxOffset/limit + 1; page > lastPage {
		page = lastPage
	}
	return PageRequest{Page: page, Limit: limit}
}

// ParsePageRequest reads page/limit query strings, ignoring malformed values.
func ParsePageRequest(page, limit string, maxLimit int) PageRequest {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return NewPageRequest(p, l, maxLimit)
}

// Offset returns the zero-based row offset of the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// NewPagination computes pagination metadata.
func NewPagination(req PageRequest, total int) Pagination {
	if req.Limit <= 0 {
		req.Limit = DefaultPageLimit
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	pages := int(math.Ceil(float64(total) / float64(req.Limit)))
	return Pagination{Page: req.Page, Limit: req.Limit, Total: total, Pages: pages}
}
