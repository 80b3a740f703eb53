package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound           = "urn:mobchat:problem:not-found"
	ProblemTypeBadRequest         = "urn:mobchat:problem:bad-request"
	ProblemTypeInternal           = "urn:mobchat:problem:internal-error"
	ProblemTypeServiceUnavailable = "urn:mobchat:problem:service-unavailable"
	ProblemTypeUpstream           = "urn:mobchat:problem:upstream-error"
	ProblemTypeTimeout            = "urn:mobchat:problem:timeout"
)

// Problem represents an RFC 7807 Problem Details response. Code carries
// the provider error code when the problem came from a backend.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func newProblem(typ string, status int, detail, instance string) Problem {
	return Problem{
		Type:     typ,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, newProblem(ProblemTypeNotFound, http.StatusNotFound, detail, instance))
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, newProblem(ProblemTypeBadRequest, http.StatusBadRequest, detail, instance))
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, newProblem(ProblemTypeInternal, http.StatusInternalServerError, detail, instance))
}

// ServiceUnavailable writes a 503 problem response.
func ServiceUnavailable(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, newProblem(ProblemTypeServiceUnavailable, http.StatusServiceUnavailable, detail, instance))
}

// GatewayTimeout writes a 504 problem response.
func GatewayTimeout(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, newProblem(ProblemTypeTimeout, http.StatusGatewayTimeout, detail, instance))
}

// UpstreamError writes a 502 problem response carrying a provider error code.
func UpstreamError(w http.ResponseWriter, code, detail, instance string) {
	p := newProblem(ProblemTypeUpstream, http.StatusBadGateway, detail, instance)
	p.Code = code
	WriteProblem(w, p)
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
