package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

// Error represents the canonical JSON error envelope returned by the storefront.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError constructs a new Error with the provided parameters.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// upstream is implemented by errors that carry a backend HTTP response.
type upstream interface {
	UpstreamStatus() int
	UpstreamMessage() string
}

// Rejection reports whether err is a backend 4xx answer the shopper can act
// on (insufficient stock, invalid status), returning the backend status and
// its sanitized message. Session and not-found answers are mapped to their
// own kinds upstream and never count as rejections.
func Rejection(err error) (status int, message string, ok bool) {
	if domain.KindOf(err) != domain.KindRemote {
		return 0, "", false
	}
	var u upstream
	if !errors.As(err, &u) {
		return 0, "", false
	}
	status = u.UpstreamStatus()
	if status < 400 || status >= 500 {
		return 0, "", false
	}
	return status, u.UpstreamMessage(), true
}

// FromDomain converts err into an envelope. message is the user-facing text;
// when empty the error's own message is used.
func FromDomain(err error, message string) Error {
	kind := domain.KindOf(err)
	code := string(kind)
	if code == "" {
		code = "internal_error"
	}
	if _, _, ok := Rejection(err); ok {
		code = "request_rejected"
	}
	if message == "" {
		message = domain.MessageOf(err)
	}
	out := NewError(code, message, StatusForError(err))

	details := map[string]any{}
	if fields := domain.FieldsOf(err); len(fields) > 0 {
		details["fields"] = map[string]string(fields)
	}
	var derr *domain.Error
	if errors.As(err, &derr) && derr.Status != "" {
		details["payment_status"] = derr.Status
	}
	if kind == domain.KindAuthRequired || kind == domain.KindSessionExpired {
		details["login_required"] = true
	}
	return out.WithDetails(details)
}

// WithRequestID sets the request identifier on the error payload.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = sanitize(id, 80)
	return e
}

// WithDetails attaches additional JSON-serialisable metadata.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	copyDetails := make(map[string]any, len(details)+len(e.Details))
	for k, v := range e.Details {
		copyDetails[k] = v
	}
	for k, v := range details {
		copyDetails[k] = v
	}
	e.Details = copyDetails
	return e
}

// WriteError writes the structured error as JSON to the provided response writer.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := err.RequestID
	if requestID == "" {
		requestID = sanitize(middleware.GetReqID(ctx), 80)
	}

	traceID := err.TraceID
	if traceID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}

	if requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID != "" {
		payload["trace_id"] = traceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	WriteJSON(w, status, payload)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusForError maps a domain error kind to an HTTP status.
func StatusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.KindAuthRequired, domain.KindSessionExpired:
		return http.StatusUnauthorized
	case domain.KindOrderNotFound, domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindShippingUnavailable:
		return http.StatusUnprocessableEntity
	case domain.KindPaymentDeclined:
		return http.StatusPaymentRequired
	case domain.KindInvalidState, domain.KindInFlight:
		return http.StatusConflict
	case domain.KindRemote:
		if status, _, ok := Rejection(err); ok {
			if status == http.StatusConflict {
				return http.StatusConflict
			}
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case domain.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
