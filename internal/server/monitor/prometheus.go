package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// AnalyzeRequests 按结果统计请求：chat / analyzed / degraded / insufficient_data / bad_request
	AnalyzeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyze_requests_total",
			Help: "Total number of analyze requests by outcome.",
		},
		[]string{"transport", "outcome"},
	)
	AnalyzeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyze_duration_seconds",
			Help:    "End-to-end time spent producing an analysis result.",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
		},
		[]string{"outcome"},
	)

	// ProviderRequestDuration 行情数据 provider 调用耗时
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Time taken by market-data provider calls.",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"endpoint"},
	)
	ProviderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_failures_total",
			Help: "Total number of failed market-data provider calls by failure kind.",
		},
		[]string{"endpoint", "kind"},
	)
	UpstreamAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_record_anomalies_total",
			Help: "Malformed or missing fields seen in provider records.",
		},
		[]string{"scope", "field"},
	)

	RiskTiers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_tier_assigned_total",
			Help: "Total number of risk tiers assigned.",
		},
		[]string{"tier"},
	)
	ChatFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_fallback_total",
			Help: "Chat requests answered with the fallback line because the generator failed.",
		},
	)
	SupplyFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supply_fallback_total",
			Help: "On-chain supply lookups performed because provider supply was unknown.",
		},
		[]string{"result"},
	)
	WebsocketSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_sessions_active",
			Help: "Number of open /ws/ai sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AnalyzeRequests,
		AnalyzeDuration,

		// provider 指标
		ProviderRequestDuration,
		ProviderFailures,
		UpstreamAnomalies,

		RiskTiers,
		ChatFallbacks,
		SupplyFallbacks,
		WebsocketSessions,
	)
}
