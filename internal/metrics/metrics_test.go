package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.RecordToggle("workout", true)
	m.RecordToggle("workout", true)
	m.RecordToggle("meal", false)
	m.RecordXP(10)
	m.RecordXP(0)
	m.RecordMigration("meals", "legacy")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TaskToggles.WithLabelValues("workout", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskToggles.WithLabelValues("meal", "uncompleted")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.XPAwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Migrations.WithLabelValues("meals", "legacy")))
}

func TestHandlerExposesPrivateRegistry(t *testing.T) {
	m := New()
	m.RecordGeneration("plan", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `neuralfit_generations_total{kind="plan",status="ok"} 1`))
	assert.False(t, strings.Contains(body, "go_goroutines"))
}
