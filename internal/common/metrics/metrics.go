// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "incompat-report/internal/common/errors"
)

const namespace = "incompat"

// RunMetrics holds the gauges for a single report run. Each run owns its
// registry, since the process exits after one run.
type RunMetrics struct {
	Registry *prometheus.Registry

	RecordsLoaded      prometheus.Gauge
	TaxpayersLoaded    prometheus.Gauge
	Cases              prometheus.Gauge
	CasesWithMunicipio prometheus.Gauge
	RunDuration        prometheus.Gauge
	EmailSent          prometheus.Gauge
	LastRunSuccess     prometheus.Gauge
	RunFailures        *prometheus.GaugeVec
}

func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		Registry: reg,
		RecordsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_loaded",
			Help:      "Labor records read from registros_laborales",
		}),
		TaxpayersLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "taxpayers_loaded",
			Help:      "Distinct taxpayers after grouping",
		}),
		Cases: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cases",
			Help:      "Cross-match cases detected",
		}),
		CasesWithMunicipio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cases_with_municipio",
			Help:      "Cases involving at least one municipio",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the report run",
		}),
		EmailSent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "email_sent",
			Help:      "1 if the report email was accepted by the relay",
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		RunFailures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_failed",
			Help:      "1 when the run failed, labelled by error code",
		}, []string{"error_code"}),
	}
}

func (m *RunMetrics) ObserveLoad(records, taxpayers int) {
	m.RecordsLoaded.Set(float64(records))
	m.TaxpayersLoaded.Set(float64(taxpayers))
}

func (m *RunMetrics) ObserveCases(total, withMunicipio int) {
	m.Cases.Set(float64(total))
	m.CasesWithMunicipio.Set(float64(withMunicipio))
}

// Finish records the outcome. On success the last-success timestamp is set
// to finishedAt; on failure the error code is recorded instead.
func (m *RunMetrics) Finish(duration time.Duration, emailSent bool, finishedAt time.Time, err error) {
	m.RunDuration.Set(duration.Seconds())
	if emailSent {
		m.EmailSent.Set(1)
	} else {
		m.EmailSent.Set(0)
	}
	if err != nil {
		m.RunFailures.WithLabelValues(string(apperrors.CodeOf(err))).Set(1)
		return
	}
	m.LastRunSuccess.Set(float64(finishedAt.Unix()))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path disables output.
func (m *RunMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return apperrors.NewMetricsWriteFailedError(path, err)
	}
	return nil
}
