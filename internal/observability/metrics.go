package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	submissionsTotal       *prometheus.CounterVec
	submissionConflicts    *prometheus.CounterVec
	gradingActionsTotal    *prometheus.CounterVec
	gradebookCacheTotal    *prometheus.CounterVec
	uploadRejectedTotal    *prometheus.CounterVec
	uploadLatencySeconds   prometheus.Histogram
	chatConnectionsTotal   prometheus.Counter
	chatActiveConnections  prometheus.Gauge
	chatMessagesTotal      *prometheus.CounterVec
	chatFrameErrorsTotal   *prometheus.CounterVec
	chatFanoutEventsTotal  *prometheus.CounterVec
	conversationsOpenTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors exposed by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillup_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_submissions_total",
			Help: "Accepted submissions by kind.",
		}, []string{"kind"})

		submissionConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_submission_conflicts_total",
			Help: "Rejected duplicate submissions by kind and detection point.",
		}, []string{"kind", "source"})

		gradingActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_grading_actions_total",
			Help: "Grading attempts by outcome.",
		}, []string{"outcome"})

		gradebookCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_gradebook_cache_total",
			Help: "Gradebook cache lookups by result.",
		}, []string{"result"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_upload_rejected_total",
			Help: "Assignment uploads rejected by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillup_upload_latency_seconds",
			Help:    "Time spent validating and storing assignment uploads.",
			Buckets: prometheus.DefBuckets,
		})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillup_chat_connections_total",
			Help: "Total websocket connections accepted.",
		})

		chatActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skillup_chat_active_connections",
			Help: "Websocket connections currently open on this node.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_chat_messages_total",
			Help: "Conversation messages persisted by transport.",
		}, []string{"transport"})

		chatFrameErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_chat_frame_errors_total",
			Help: "Channel frames rejected by reason.",
		}, []string{"reason"})

		chatFanoutEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_chat_fanout_events_total",
			Help: "Room events received from peer nodes by broker.",
		}, []string{"broker"})

		conversationsOpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillup_conversations_opened_total",
			Help: "Conversation open requests by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionsTotal,
			submissionConflicts,
			gradingActionsTotal,
			gradebookCacheTotal,
			uploadRejectedTotal,
			uploadLatencySeconds,
			chatConnectionsTotal,
			chatActiveConnections,
			chatMessagesTotal,
			chatFrameErrorsTotal,
			chatFanoutEventsTotal,
			conversationsOpenTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// SubmissionsAccepted counts stored submissions.
func SubmissionsAccepted() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// SubmissionConflicts counts duplicate submission attempts.
func SubmissionConflicts() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionConflicts
}

// GradingActions counts grading outcomes.
func GradingActions() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingActionsTotal
}

// GradebookCache counts gradebook cache hits and misses.
func GradebookCache() *prometheus.CounterVec {
	RegisterMetrics()
	return gradebookCacheTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// ChatConnectionsTotal counts accepted websocket connections.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

// ChatActiveConnections tracks open websocket connections.
func ChatActiveConnections() prometheus.Gauge {
	RegisterMetrics()
	return chatActiveConnections
}

// ChatMessagesSent counts persisted conversation messages.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// ChatFrameErrors counts rejected channel frames.
func ChatFrameErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return chatFrameErrorsTotal
}

// ChatFanoutEvents counts room events received from other nodes.
func ChatFanoutEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return chatFanoutEventsTotal
}

// ConversationsOpened counts conversation open requests.
func ConversationsOpened() *prometheus.CounterVec {
	RegisterMetrics()
	return conversationsOpenTotal
}
