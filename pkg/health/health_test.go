package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWorstStatusWins(t *testing.T) {
	t.Parallel()

	c := NewChecker()
	c.Register("engine", Static(StatusUp, "ready"))
	c.Register("redis", Ping(func(context.Context) error { return errors.New("refused") }, false))
	assert.Equal(t, StatusDegraded, c.Run(context.Background()).Status)

	c.Register("postgres", Ping(func(context.Context) error { return errors.New("refused") }, true))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Len(t, report.Components, 3)
	assert.Equal(t, "refused", report.Components["postgres"].Message)
	assert.NotEmpty(t, report.Components["engine"].Latency)
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	c := NewChecker()
	c.Register("engine", Static(StatusUp, ""))
	c.Register("redis", Static(StatusDegraded, "not configured"))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("postgres", Static(StatusDown, "gone"))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
