package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"oyken/internal/calendar"
	"oyken/internal/core"
	"oyken/internal/finance"
	"oyken/internal/ledger"
	"oyken/internal/log"
	"oyken/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	raw        []byte
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	b.raw = nil
	return b
}

// Raw sets an already encoded body, e.g. a cached report.
func (b *JSONResponseBuilder) Raw(data []byte) *JSONResponseBuilder {
	b.raw = data
	b.body = nil
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	payload := b.raw
	if payload == nil && b.body != nil {
		var err error
		payload, err = json.Marshal(b.body)
		if err != nil {
			b.statusCode = http.StatusInternalServerError
			payload = []byte(`{"error":"failed to encode response"}`)
		}
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if payload != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if payload != nil {
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n"))
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message, Code: code})
}

// statusFor maps an error from the ledger to an HTTP status and a short
// machine-readable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ledger.ErrInvalid):
		return http.StatusUnprocessableEntity, "invalid"
	case errors.Is(err, finance.ErrNoSales), errors.Is(err, finance.ErrNonPositiveMargin):
		return http.StatusUnprocessableEntity, "not_computable"
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, finance.ErrNoData),
		errors.Is(err, calendar.ErrNoHistoricalMatch):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError logs server-side failures and answers with the mapped status.
// Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, op, log.NewFields().
				WithRequestID(trace.GetRequestID(r.Context())).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		msg = "internal error"
	}
	ErrorResponse(status, code, msg).Write(w)
}
