package metrics

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

type (
	Client interface {
		Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}

	// PrometheusClient turns every Inc key into a counter in its own
	// registry. Attribute keys become labels; the label set of a counter is
	// fixed by the first call that creates it.
	PrometheusClient struct {
		namespace string
		registry  *prometheus.Registry

		mu       sync.Mutex
		counters map[string]*counter
	}

	counter struct {
		vec    *prometheus.CounterVec
		labels []string
	}
)

var invalidMetricChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func NewPrometheusClient(namespace string) *PrometheusClient {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &PrometheusClient{
		namespace: sanitize(namespace),
		registry:  registry,
		counters:  make(map[string]*counter),
	}
}

// Inc adds value to the counter named by key. Negative and non-numeric
// values are ignored since counters only go up.
func (c *PrometheusClient) Inc(_ context.Context, key string, value any, attributes ...attribute.KeyValue) {
	amount, ok := toFloat(value)
	if !ok || amount < 0 {
		return
	}

	ctr, err := c.counterFor(key, attributes)
	if err != nil {
		return
	}

	values := make([]string, len(ctr.labels))

	for i, label := range ctr.labels {
		for _, attr := range attributes {
			if sanitize(string(attr.Key)) == label {
				values[i] = attr.Value.Emit()

				break
			}
		}
	}

	ctr.vec.WithLabelValues(values...).Add(amount)
}

func (c *PrometheusClient) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *PrometheusClient) Shutdown(context.Context) error {
	return nil
}

func (c *PrometheusClient) counterFor(key string, attributes []attribute.KeyValue) (*counter, error) {
	name := sanitize(key) + "_total"

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctr, ok := c.counters[name]; ok {
		return ctr, nil
	}

	labels := make([]string, 0, len(attributes))
	for _, attr := range attributes {
		labels = append(labels, sanitize(string(attr.Key)))
	}

	sort.Strings(labels)

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      "Count of " + key + ".",
	}, labels)

	if err := c.registry.Register(vec); err != nil {
		return nil, err
	}

	ctr := &counter{vec: vec, labels: labels}
	c.counters[name] = ctr

	return ctr, nil
}

func sanitize(s string) string {
	return invalidMetricChars.ReplaceAllString(strings.ToLower(s), "_")
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case time.Duration:
		return v.Seconds(), true
	}

	return 0, false
}
