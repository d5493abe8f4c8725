// Package http serves the dashboard API and page.
//
// This file holds the response builder every handler answers through.
// Error bodies are always JSON objects of the form {"message": "..."}.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"umkm/internal/core"
	"umkm/internal/remote"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	payload     any
	raw         []byte
	contentType string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	b.raw = nil
	return b
}

// Bytes sets a pre-rendered body of the given content type.
func (b *ResponseBuilder) Bytes(contentType string, body []byte) *ResponseBuilder {
	b.contentType = contentType
	b.raw = body
	b.payload = nil
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.raw != nil {
		w.Header().Set("Content-Type", b.contentType)
		w.WriteHeader(b.statusCode)
		_, _ = w.Write(b.raw)
		return
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

type errorBody struct {
	Message string `json:"message"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Message: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptySource,
	core.ErrInvalidFrequency,
	core.ErrEmptyName,
	core.ErrInvalidHours,
	core.ErrInvalidEmail,
	core.ErrPasswordTooShort,
	core.ErrPasswordMismatch,
	core.ErrNotesTooLong,
	core.ErrDescriptionTooLong,
}

// StatusFor maps a store or service error onto an HTTP status and the
// message shown to the client. Unknown errors are 500 with a generic
// message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "malformed request body"
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrMissingPrincipal):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, core.ErrInvalidCredentials.Error()
	case errors.Is(err, core.ErrPendingApproval):
		return http.StatusUnauthorized, core.ErrPendingApproval.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrEmailTaken):
		return http.StatusConflict, core.ErrEmailTaken.Error()
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, v.Error()
		}
	}
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Message != "" {
			return http.StatusUnprocessableEntity, apiErr.Message
		}
		return http.StatusBadGateway, "upstream service error"
	}
	return http.StatusInternalServerError, "internal error"
}

// ErrorFrom builds the response for err using StatusFor.
func ErrorFrom(err error) *ResponseBuilder {
	status, msg := StatusFor(err)
	return ErrorResponse(status, msg)
}
