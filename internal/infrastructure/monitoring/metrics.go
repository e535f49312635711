package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medsh"

// Command kinds recorded by RecordCommand.
const (
	KindExit     = "exit"
	KindHistory  = "history"
	KindIdentity = "set_user"
	KindAlias    = "alias_definition"
	KindPlain    = "command"
)

// Launch modes.
const (
	ModeForeground = "foreground"
	ModeBackground = "background"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal  *prometheus.CounterVec
	HistoryAppends prometheus.Counter
	Identities     prometheus.Gauge
	Aliases        prometheus.Gauge
	Launches       *prometheus.CounterVec
	LaunchFailures *prometheus.CounterVec
	Uptime         prometheus.GaugeFunc

	startTime time.Time
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),

		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of submitted lines by kind",
			},
			[]string{"kind"},
		),
		HistoryAppends: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_appends_total",
				Help:      "Total number of lines recorded into history",
			},
		),
		Identities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "identities",
				Help:      "Number of identities created",
			},
		),
		Aliases: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "aliases",
				Help:      "Number of aliases defined",
			},
		),
		Launches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launches_total",
				Help:      "Total number of programs started",
			},
			[]string{"mode"},
		),
		LaunchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launch_failures_total",
				Help:      "Total number of programs that failed to start",
			},
			[]string{"mode"},
		),
	}

	m.Uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Session uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	m.registry.MustRegister(
		m.CommandsTotal,
		m.HistoryAppends,
		m.Identities,
		m.Aliases,
		m.Launches,
		m.LaunchFailures,
		m.Uptime,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCommand counts a submitted line.
func (m *Metrics) RecordCommand(kind string) {
	m.CommandsTotal.WithLabelValues(kind).Inc()
}

// IncHistoryAppends counts a recorded history line.
func (m *Metrics) IncHistoryAppends() {
	m.HistoryAppends.Inc()
}

// SetIdentities sets the identity gauge.
func (m *Metrics) SetIdentities(count int) {
	m.Identities.Set(float64(count))
}

// SetAliases sets the alias gauge.
func (m *Metrics) SetAliases(count int) {
	m.Aliases.Set(float64(count))
}

// RecordLaunch counts a launch attempt and whether it failed to start.
func (m *Metrics) RecordLaunch(background bool, err error) {
	mode := ModeForeground
	if background {
		mode = ModeBackground
	}
	if err != nil {
		m.LaunchFailures.WithLabelValues(mode).Inc()
		return
	}
	m.Launches.WithLabelValues(mode).Inc()
}
