package observability

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics: счётчики секций краулера, сбрасываются в textfile в конце запуска
type Metrics struct {
	registry *prometheus.Registry

	Sections  *prometheus.CounterVec
	Reboots   prometheus.Counter
	Symbols   *prometheus.CounterVec
	Downloads prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "sections_total",
			Help:      "Crawled sections by outcome.",
		}, []string{"section", "status"}),
		Reboots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "session_reboots_total",
			Help:      "Browser session reboots after stale sessions.",
		}),
		Symbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "symbols_total",
			Help:      "Processed symbols by outcome.",
		}, []string{"status"}),
		Downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crawler",
			Name:      "downloads_total",
			Help:      "Files downloaded and moved into datasets.",
		}),
	}
	m.registry.MustRegister(m.Sections, m.Reboots, m.Symbols, m.Downloads)
	return m
}

func (m *Metrics) ObserveSection(section string, ok bool) {
	status := StatusSuccess
	if !ok {
		status = StatusFailed
	}
	m.Sections.WithLabelValues(section, status).Inc()
}

// WriteTextfile пишет метрики в формате textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
