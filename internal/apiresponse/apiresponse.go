// Package apiresponse defines the JSON envelopes every API endpoint returns.
package apiresponse

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Error codes carried in ErrorBody.Code
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 1_000_000
)

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// Response wraps a single item
type Response[T any] struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Data      *T         `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Path      string     `json:"path"`
}

// Pagination describes a page of results
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// Paginated wraps a list of items
type Paginated[T any] struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Error      *ErrorBody `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Path       string     `json:"path"`
}

// PageRequest is a parsed page/limit pair
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip. Out-of-range pages saturate
// instead of wrapping.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// NewPagination computes derived pagination fields
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 && total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ParsePageRequest reads ?page= and ?limit=, clamping both to sane values
func ParsePageRequest(c *gin.Context) PageRequest {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return PageRequest{Page: page, Limit: limit}
}

// OK writes a successful single-item envelope
func OK[T any](c *gin.Context, status int, message string, data T) {
	c.JSON(status, Response[T]{
		Success:   true,
		Message:   message,
		Data:      &data,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

// Page writes a successful paginated envelope
func Page[T any](c *gin.Context, message string, data []T, req PageRequest, total int64) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, Paginated[T]{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: NewPagination(req.Page, req.Limit, total),
		Timestamp:  time.Now().UTC(),
		Path:       c.Request.URL.Path,
	})
}

// Fail writes an error envelope and aborts the handler chain
func Fail(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, Response[struct{}]{
		Success:   false,
		Message:   message,
		Error:     &ErrorBody{Code: code, Details: details},
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}
