package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLoggerLevels(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.DebugLevel)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(InjectLogger(zap.New(core)))
	r.Use(RequestLogger)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("handler")
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/7", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	handler := logs.FilterMessage("handler").All()
	require.Len(t, handler, 1)
	require.NotEmpty(t, handler[0].ContextMap()["request_id"])

	done := logs.FilterMessage("request completed").All()
	require.Len(t, done, 2)
	require.Equal(t, zap.WarnLevel, done[0].Level)
	require.Equal(t, "/orders/{id}", done[0].ContextMap()["route"])
	require.EqualValues(t, 404, done[0].ContextMap()["status"])
	require.Equal(t, zap.ErrorLevel, done[1].Level)
}

func TestFromContextDefaultsToNop(t *testing.T) {
	t.Parallel()
	require.NotNil(t, FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
	require.NotNil(t, OrNop(nil))
}

func TestSanitize(t *testing.T) {
	t.Parallel()
	require.Equal(t, "/", SanitizeRoute(""))
	require.Equal(t, "/a/b", SanitizeRoute("/a\n/b"))
	require.Equal(t, "GET", SanitizeMethod("GET\r"))
	require.Equal(t, "PROPFINDXX", SanitizeMethod("PROPFINDXXYZ"))
	require.Len(t, []rune(SanitizeRoute("/"+strings.Repeat("é", 400))), 180)
	require.Equal(t, "01J9ZK6T2Q3M4N5P6R7S8T9V0W", SanitizeProfile("01J9ZK6T2Q3M4N5P6R7S8T9V0W\nextra"))
	require.Equal(t, "abc", SanitizeProfile("a b\tc;"))
}
