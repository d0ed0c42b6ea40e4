package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/fruits/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/fruits/"+id, http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/fruits/{id}", "404"))
	if got < 3 {
		t.Fatalf("expected at least 3 requests under the route pattern, got %f", got)
	}

	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Fatal("expected http_request_duration_seconds to have observations")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	Register(reg)

	LLMRequestsTotal.WithLabelValues("gemini", "success").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, family := range families {
		if family.GetName() == "fruit_matcher_llm_requests_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected llm_requests_total to be registered")
	}
}
