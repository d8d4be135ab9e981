package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netvisor_sessions_active",
		Help: "Number of discovery sessions currently live in the registry (any non-terminal phase).",
	})
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netvisor_sessions_total",
		Help: "Total number of discovery sessions by terminal phase.",
	}, []string{"phase"})
	SessionQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netvisor_session_queue_depth",
		Help: "Number of Pending sessions waiting in an agent's FIFO queue.",
	}, []string{"agent_id"})
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netvisor_scan_duration_seconds",
		Help:    "Duration of a single host scan (TCP+UDP+endpoint probes).",
		Buckets: prometheus.DefBuckets,
	})
	HostsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netvisor_hosts_scanned_total",
		Help: "Total number of hosts scanned across all sessions.",
	})
	ServicesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netvisor_services_matched_total",
		Help: "Total number of service classifications produced, by confidence tier.",
	}, []string{"confidence"})
	SubscribersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netvisor_sse_subscribers",
		Help: "Number of clients currently subscribed to the discovery SSE stream.",
	})
	SubscriberDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netvisor_sse_events_dropped_total",
		Help: "Total number of broadcast events dropped because a subscriber's buffer was full.",
	})
	SchedulerJobErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netvisor_scheduler_job_errors_total",
		Help: "Total number of scheduled discovery definitions that failed to register, by reason.",
	}, []string{"reason"})
)
