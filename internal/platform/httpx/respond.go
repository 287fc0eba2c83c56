// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string            `json:"type,omitempty"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Code   string            `json:"code"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Envelope wraps successful payloads.
type Envelope struct {
	Data       any                `json:"data"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
	Summary    any                `json:"summary,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Data sends {"data": payload}.
func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, Envelope{Data: payload})
}

// Page sends {"data": payload, "pagination": meta}.
func Page(w http.ResponseWriter, payload any, meta shared.Pagination) {
	JSON(w, http.StatusOK, Envelope{Data: payload, Pagination: &meta})
}

// PageWithSummary sends {"data": payload, "pagination": meta, "summary": summary}.
func PageWithSummary(w http.ResponseWriter, payload any, meta shared.Pagination, summary any) {
	JSON(w, http.StatusOK, Envelope{Data: payload, Pagination: &meta, Summary: summary})
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, code, title, detail string) {
	write(w, ProblemDetail{
		Title:  title,
		Status: status,
		Code:   code,
		Detail: detail,
	})
}

func write(w http.ResponseWriter, p ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return shared.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}
