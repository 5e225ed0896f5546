package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
)

func TestStatusForError(t *testing.T) {
	t.Parallel()
	cases := map[domain.Kind]int{
		domain.KindAuthRequired:        http.StatusUnauthorized,
		domain.KindSessionExpired:      http.StatusUnauthorized,
		domain.KindOrderNotFound:       http.StatusNotFound,
		domain.KindValidation:          http.StatusUnprocessableEntity,
		domain.KindShippingUnavailable: http.StatusUnprocessableEntity,
		domain.KindPaymentDeclined:     http.StatusPaymentRequired,
		domain.KindInvalidState:        http.StatusConflict,
		domain.KindInFlight:            http.StatusConflict,
		domain.KindNetwork:             http.StatusBadGateway,
		domain.KindRemote:              http.StatusBadGateway,
		domain.KindNotFound:            http.StatusNotFound,
	}
	for kind, want := range cases {
		require.Equal(t, want, StatusForError(domain.E(kind, "op", "msg")), kind)
	}
	require.Equal(t, http.StatusInternalServerError, StatusForError(errors.New("boom")))
}

func TestFromDomainDetails(t *testing.T) {
	t.Parallel()
	err := domain.Validation("checkout.SubmitAddress", domain.FieldErrors{"taxId": "invalid"})
	env := FromDomain(err, "Confira os campos destacados.")
	require.Equal(t, "validation_error", env.Code)
	require.Equal(t, http.StatusUnprocessableEntity, env.Status)
	require.Equal(t, "Confira os campos destacados.", env.Message)
	require.Equal(t, map[string]string{"taxId": "invalid"}, env.Details["fields"])

	declined := &domain.Error{Kind: domain.KindPaymentDeclined, Message: "REJECTED", Status: "REJECTED"}
	env = FromDomain(declined, "")
	require.Equal(t, "REJECTED", env.Message)
	require.Equal(t, "REJECTED", env.Details["payment_status"])

	env = FromDomain(domain.ErrSessionExpired, "")
	require.Equal(t, true, env.Details["login_required"])

	env = FromDomain(errors.New("raw"), "")
	require.Equal(t, "internal_error", env.Code)
}

type backendAnswer struct {
	status  int
	message string
}

func (b backendAnswer) Error() string           { return b.message }
func (b backendAnswer) UpstreamStatus() int     { return b.status }
func (b backendAnswer) UpstreamMessage() string { return b.message }

func TestBackendRejections(t *testing.T) {
	t.Parallel()
	remote := func(status int, msg string) error {
		return &domain.Error{Kind: domain.KindRemote, Op: "POST /cart-items", Message: msg, Err: backendAnswer{status, msg}}
	}

	err := remote(http.StatusBadRequest, "Estoque insuficiente para o produto Caneca")
	status, msg, ok := Rejection(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Estoque insuficiente para o produto Caneca", msg)
	require.Equal(t, http.StatusUnprocessableEntity, StatusForError(err))
	env := FromDomain(err, msg)
	require.Equal(t, "request_rejected", env.Code)
	require.Equal(t, "Estoque insuficiente para o produto Caneca", env.Message)

	require.Equal(t, http.StatusConflict, StatusForError(remote(http.StatusConflict, "status inválido")))

	for _, upstreamStatus := range []int{http.StatusInternalServerError, http.StatusBadGateway} {
		err := remote(upstreamStatus, "boom")
		_, _, ok := Rejection(err)
		require.False(t, ok)
		require.Equal(t, http.StatusBadGateway, StatusForError(err))
		require.Equal(t, "remote_error", FromDomain(err, "").Code)
	}

	declined := &domain.Error{Kind: domain.KindPaymentDeclined, Err: backendAnswer{http.StatusBadRequest, "recusado"}}
	_, _, ok = Rejection(declined)
	require.False(t, ok)
	_, _, ok = Rejection(domain.E(domain.KindNetwork, "op", "offline"))
	require.False(t, ok)
}

func TestWriteErrorEnvelope(t *testing.T) {
	t.Parallel()
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	rec := httptest.NewRecorder()
	WriteError(ctx, rec, NewError("bad_request", "line one\nline two", http.StatusBadRequest).
		WithDetails(map[string]any{"hint": "x"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bad_request", body["error"])
	require.Equal(t, "line one line two", body["message"])
	require.EqualValues(t, 400, body["status"])
	require.Equal(t, "req-1", body["request_id"])
	require.Equal(t, "x", body["hint"])
	require.NotContains(t, body, "trace_id")
}
