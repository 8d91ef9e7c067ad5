package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveOnboarding(t *testing.T) {
	before := testutil.ToFloat64(OnboardingTotal.WithLabelValues("success", "admin_write"))
	ObserveOnboarding("success", "admin_write", 20*time.Millisecond)
	after := testutil.ToFloat64(OnboardingTotal.WithLabelValues("success", "admin_write"))
	assert.Equal(t, before+1, after)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/hoas/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := RequestCounter.WithLabelValues(http.MethodGet, "/hoas/{slug}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hoas/acme", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
