package mapservice

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus collectors of the service. A nil *Metrics
// records nothing.
type Metrics struct {
	openSessions prometheus.Gauge
	commands     *prometheus.CounterVec
	history      *prometheus.CounterVec
	snapshots    prometheus.Counter
	requests     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orimap",
			Name:      "open_maps",
			Help:      "Number of maps currently open for editing.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orimap",
			Name:      "commands_total",
			Help:      "Editor commands executed, by command and outcome.",
		}, []string{"op", "result"}),
		history: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orimap",
			Name:      "history_steps_total",
			Help:      "Undo and redo steps applied.",
		}, []string{"direction"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orimap",
			Name:      "snapshots_saved_total",
			Help:      "Map snapshots written to the store.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orimap",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	reg.MustRegister(m.openSessions, m.commands, m.history, m.snapshots, m.requests)
	return m
}

func (m *Metrics) setOpenSessions(n int) {
	if m != nil {
		m.openSessions.Set(float64(n))
	}
}

func (m *Metrics) command(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(op, result).Inc()
}

func (m *Metrics) historyStep(direction string) {
	if m != nil {
		m.history.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) snapshotSaved() {
	if m != nil {
		m.snapshots.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware observes request latency labeled with the matched route
// template, so map ids do not blow up the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
