package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(ImportsTotal.WithLabelValues("imported"))
	ImportsTotal.WithLabelValues("imported").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ImportsTotal.WithLabelValues("imported")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "routedesk_routes_imports_total")
}
