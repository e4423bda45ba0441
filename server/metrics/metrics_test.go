package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCounters(t *testing.T) {
	m := NewManager(WithRegistry(prometheus.NewRegistry()))

	m.MatchCreated("live")
	m.MatchCreated("live")
	m.MatchCreated("cached")
	m.VoteRecorded(true)
	m.VoteRecorded(false)
	m.ProviderFailure("openai/gpt-4o")
	m.ProviderFailure("bare-model")
	m.QuotaRejected()
	m.CachedResolved("seed")
	m.PersistFailed("RecordVote")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.matchesCreated.WithLabelValues("live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matchesCreated.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("first")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("revote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerFailures.WithLabelValues("openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerFailures.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cachedResolved.WithLabelValues("seed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures.WithLabelValues("RecordVote")))
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewManager()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/cached/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cached/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/cached/{id}", "GET", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "graphicarena_http_requests_total"))
}
