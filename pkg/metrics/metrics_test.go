package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/architeacher/nocoflo/pkg/metrics"
	"github.com/architeacher/nocoflo/pkg/metrics/noop"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func scrape(t *testing.T, client metrics.Client) string {
	t.Helper()

	rec := httptest.NewRecorder()
	client.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestPrometheusClient_Inc(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := metrics.NewPrometheusClient("nocoflo")

	client.Inc(ctx, "commands.lockrow.success", 1, attribute.String("backend", "sqlite"))
	client.Inc(ctx, "commands.lockrow.success", int64(2), attribute.String("backend", "sqlite"))
	client.Inc(ctx, "queries.readrows.duration", 1500*time.Millisecond)
	client.Inc(ctx, "ignored", "not a number")
	client.Inc(ctx, "ignored", -1)

	body := scrape(t, client)

	require.Contains(t, body, `nocoflo_commands_lockrow_success_total{backend="sqlite"} 3`)
	require.Contains(t, body, `nocoflo_queries_readrows_duration_total 1.5`)
	require.NotContains(t, body, "nocoflo_ignored_total")
	require.Contains(t, body, "go_goroutines")

	require.NoError(t, client.Shutdown(ctx))
}

func TestPrometheusClient_MissingLabelsAreEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := metrics.NewPrometheusClient("app")

	client.Inc(ctx, "rows", 1, attribute.String("table", "orders"))
	client.Inc(ctx, "rows", 1)

	body := scrape(t, client)

	require.Contains(t, body, `app_rows_total{table="orders"} 1`)

	series := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "app_rows_total") {
			series++
		}
	}

	require.Equal(t, 2, series)
}

func TestNoopClient(t *testing.T) {
	t.Parallel()

	client := noop.NewMetricsClient()
	client.Inc(context.Background(), "anything", 1)

	rec := httptest.NewRecorder()
	client.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 404, rec.Code)
}
