package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "housekeeper",
			Name:      "sync_runs_total",
			Help:      "Sync runs by terminal status.",
		},
		[]string{"status"},
	)

	taskMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "housekeeper",
			Name:      "task_mutations_total",
			Help:      "Cleaning task mutations applied by the reconciler.",
		},
		[]string{"action"},
	)

	notificationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "housekeeper",
			Name:      "notification_attempts_total",
			Help:      "Notification attempts by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "housekeeper",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncRuns, taskMutations, notificationAttempts, httpRequests)
	})
}

// IncRun increments the run counter for a terminal status.
func IncRun(status string) {
	syncRuns.WithLabelValues(status).Inc()
}

// IncTask increments the task mutation counter for an action label.
func IncTask(action string) {
	taskMutations.WithLabelValues(action).Inc()
}

// IncNotification increments the attempt counter for a channel/outcome.
func IncNotification(channel string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	notificationAttempts.WithLabelValues(channel, outcome).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
