package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ChatRequestsTotal counts /chat outcomes by HTTP status and endpoint.
	ChatRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "gateway",
		Name:      "chat_requests_total",
		Help:      "Total number of chat requests forwarded to Bedrock, labeled by response status and endpoint.",
	}, []string{"status", "endpoint"})

	// ProviderDurationSeconds is the time spent inside InvokeModel.
	ProviderDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "janus",
		Subsystem: "gateway",
		Name:      "provider_duration_seconds",
		Help:      "Latency of Bedrock InvokeModel calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"endpoint"})

	// TokensTotal counts tokens reported by the provider.
	TokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "gateway",
		Name:      "tokens_total",
		Help:      "Total tokens reported by Bedrock, labeled by direction (input/output).",
	}, []string{"direction"})

	// UsageRecordsDropped counts ledger records dropped because the queue was full.
	UsageRecordsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "janus",
		Subsystem: "ledger",
		Name:      "records_dropped_total",
		Help:      "Usage records dropped because the ledger queue was full.",
	})
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ChatRequestsTotal,
			ProviderDurationSeconds,
			TokensTotal,
			UsageRecordsDropped,
		)
	})
}

func ObserveChat(endpoint string, status int, took time.Duration) {
	ChatRequestsTotal.WithLabelValues(strconv.Itoa(status), endpoint).Inc()
	ProviderDurationSeconds.WithLabelValues(endpoint).Observe(took.Seconds())
}

func ObserveTokens(input, output int) {
	TokensTotal.WithLabelValues("input").Add(float64(input))
	TokensTotal.WithLabelValues("output").Add(float64(output))
}
