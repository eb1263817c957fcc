package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusConfig configures the Prometheus bridge.
type PrometheusConfig struct {
	// Namespace is prepended to every exported metric name (e.g. "zkriscv").
	Namespace string
	// Path is the HTTP path the bridge serves metrics on (default "/metrics").
	Path string
}

// DefaultPrometheusConfig returns a config with sensible defaults.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace: "zkriscv",
		Path:      "/metrics",
	}
}

// PrometheusExporter adapts a Registry of Counters/Gauges/Histograms into a
// real prometheus.Collector, so the prover's internal counters, gauges
// (such as device allocator current/peak usage) and histograms can be
// scraped by any Prometheus-compatible collector without reimplementing the
// exposition format. Meters in the Registry are not exported.
type PrometheusExporter struct {
	config   PrometheusConfig
	registry *Registry
}

// NewPrometheusExporter creates an exporter that reads from registry.
func NewPrometheusExporter(registry *Registry, config PrometheusConfig) *PrometheusExporter {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	return &PrometheusExporter{config: config, registry: registry}
}

// Describe implements prometheus.Collector. Metric names are registered
// dynamically at Collect time, so descriptors are unchecked.
func (pe *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector, translating the current Registry
// snapshot into const metrics on every scrape.
func (pe *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	pe.registry.mu.RLock()
	defer pe.registry.mu.RUnlock()

	for _, name := range sortedKeys(pe.registry.counters) {
		c := pe.registry.counters[name]
		desc := pe.desc(name, "counter exported from the internal metrics registry")
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(c.Value()))
	}
	for _, name := range sortedKeys(pe.registry.gauges) {
		g := pe.registry.gauges[name]
		desc := pe.desc(name, "gauge exported from the internal metrics registry")
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(g.Value()))
	}
	for _, name := range sortedKeys(pe.registry.histograms) {
		h := pe.registry.histograms[name]
		ch <- prometheus.MustNewConstSummary(
			pe.desc(name, "summary exported from the internal metrics registry"),
			uint64(h.Count()), h.Sum(), map[float64]float64{},
		)
	}
}

// Handler returns an http.Handler serving the bridged registry at
// config.Path, from a fresh prometheus registry that holds only this
// exporter.
func (pe *PrometheusExporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(pe)
	mux := http.NewServeMux()
	mux.Handle(pe.config.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func (pe *PrometheusExporter) desc(name, help string) *prometheus.Desc {
	promName := pe.promName(name)
	return prometheus.NewDesc(promName, help, nil, nil)
}

func (pe *PrometheusExporter) promName(name string) string {
	sanitized := sanitizeName(name)
	if pe.config.Namespace != "" {
		return pe.config.Namespace + "_" + sanitized
	}
	return sanitized
}

func sanitizeName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c == '.' || c == '-' || c == ' ' {
			b[i] = '_'
		}
	}
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
