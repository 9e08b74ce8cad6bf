package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.AuthDecisions.WithLabelValues(OutcomeForbidden).Inc()
	m.AuthDecisions.WithLabelValues(OutcomeForbidden).Inc()
	m.TaskMutations.WithLabelValues("create", "ok").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthDecisions.WithLabelValues(OutcomeForbidden)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskMutations.WithLabelValues("create", "ok")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Logins.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `taskboard_logins_total{result="success"} 1`))
}
