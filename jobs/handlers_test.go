package jobs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/nileharvest/backoffice/internal/jobs"
	"github.com/nileharvest/backoffice/internal/notifications"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scrape(t *testing.T, registry *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestDeliverHandlerBadPayloadClosesJobRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	svc := notifications.NewService(nil, nil, nil, testLogger())
	handler := NewNotificationDeliverHandler(svc, metrics, testLogger())

	err := handler(context.Background(), asynq.NewTask(TaskNotificationDeliver, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	body := scrape(t, registry)
	require.Contains(t, body,
		`backoffice_jobs_total{job="notification:deliver",status="failure"} 1`)
	require.Contains(t, body,
		`backoffice_jobs_failures_total{job="notification:deliver"} 1`)
}

func TestDailyStatementHandlerBadPayloadClosesJobRun(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	handler := NewDailyStatementHandler(nil, metrics, testLogger())

	err := handler(context.Background(), asynq.NewTask(TaskDailyStatement, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	body := scrape(t, registry)
	require.Contains(t, body,
		`backoffice_jobs_total{job="reports:daily_statement",status="failure"} 1`)
}
