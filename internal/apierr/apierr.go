// Package apierr maps Pollux's internal failure kinds onto HTTP status
// codes and provider-shaped JSON error bodies, grounded in the teacher's
// internal/errors package (APIError + OpenAI/Gemini envelope rendering)
// but organized around the gateway's own error kinds (spec.md components
// §4.6, §4.8) instead of the teacher's generic upstream-status mapping.
package apierr

import (
	"encoding/json"
	"net/http"
)

// Format selects which provider's error envelope to render.
type Format string

const (
	FormatOpenAI Format = "openai"
	FormatGemini Format = "gemini"
)

// Kind enumerates the gateway's own failure classes, named after the
// ambient-stack section of SPEC_FULL.md.
type Kind string

const (
	KindConfigInvalid       Kind = "CONFIG_INVALID"
	KindAuthRejected        Kind = "AUTH_REJECTED"
	KindNoCredential        Kind = "NO_CREDENTIAL"
	KindUpstreamAuth        Kind = "UPSTREAM_AUTH"
	KindUpstreamRateLimited Kind = "UPSTREAM_RATE_LIMITED"
	KindUpstreamTransport   Kind = "UPSTREAM"
	KindUpstreamParse       Kind = "UPSTREAM_PARSE"
	KindRefreshFailed       Kind = "REFRESH_FAILED"
)

// kindHTTPStatus is the default HTTP status for each Kind; NoCredential
// is overridable at construction time per spec.md §12's Open Question.
var kindHTTPStatus = map[Kind]int{
	KindConfigInvalid:       http.StatusInternalServerError,
	KindAuthRejected:        http.StatusUnauthorized,
	KindNoCredential:        http.StatusServiceUnavailable,
	KindUpstreamAuth:        http.StatusBadGateway,
	KindUpstreamRateLimited: http.StatusTooManyRequests,
	KindUpstreamTransport:   http.StatusBadGateway,
	KindUpstreamParse:       http.StatusBadGateway,
	KindRefreshFailed:       http.StatusBadGateway,
}

// Error is Pollux's standardized error, convertible into either
// provider's wire error shape.
type Error struct {
	Kind       Kind
	HTTPStatus int
	Message    string
	Details    map[string]interface{}
}

// New builds an Error for kind with its default HTTP status.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, HTTPStatus: kindHTTPStatus[kind], Message: message}
}

// WithStatus overrides the HTTP status, e.g. NO_CREDENTIAL configured to
// respond 409 instead of the default 503.
func (e *Error) WithStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// ToJSON renders the error in the requested provider's envelope.
func (e *Error) ToJSON(format Format) ([]byte, error) {
	switch format {
	case FormatGemini:
		return e.toGeminiJSON()
	default:
		return e.toOpenAIJSON()
	}
}

type openAIEnvelope struct {
	Error struct {
		Message string                 `json:"message"`
		Type    string                 `json:"type"`
		Code    string                 `json:"code,omitempty"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func (e *Error) toOpenAIJSON() ([]byte, error) {
	env := openAIEnvelope{}
	env.Error.Message = e.Message
	env.Error.Type = string(e.Kind)
	env.Error.Code = string(e.Kind)
	env.Error.Details = e.Details
	return json.Marshal(env)
}

type geminiEnvelope struct {
	Error struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Status  string                 `json:"status"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func (e *Error) toGeminiJSON() ([]byte, error) {
	env := geminiEnvelope{}
	env.Error.Code = e.HTTPStatus
	env.Error.Message = e.Message
	env.Error.Status = geminiStatus(e.HTTPStatus)
	env.Error.Details = e.Details
	return json.Marshal(env)
}

func geminiStatus(httpStatus int) string {
	switch httpStatus {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusInternalServerError:
		return "INTERNAL"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// NoCredential builds the NO_CREDENTIAL error with body
// {"error":"no available credential"} as spec.md §4.6 requires verbatim,
// bypassing the provider envelope shapes above.
func NoCredential(status int) *Error {
	return &Error{Kind: KindNoCredential, HTTPStatus: status, Message: "no available credential"}
}

// NoCredentialJSON renders the spec-mandated flat body for NoCredential,
// which is not wrapped in either provider's normal error envelope.
func (e *Error) NoCredentialJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"error": e.Message})
}
