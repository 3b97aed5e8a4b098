package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics for the contango scanner
var (
	// Quote stream metrics
	QuoteUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_quote_updates_total",
			Help: "Total number of quote updates applied to venue caches",
		},
		[]string{"venue"},
	)

	ConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cs_connection_status",
			Help: "WebSocket connection status (1=connected, 0=disconnected)",
		},
		[]string{"venue"},
	)

	ConnectionReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_reconnects_total",
			Help: "Total number of reconnection attempts",
		},
		[]string{"venue"},
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_stream_errors_total",
			Help: "Total number of stream session failures",
		},
		[]string{"venue"},
	)

	InstrumentsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cs_instruments_loaded",
			Help: "Number of instruments loaded per venue catalog",
		},
		[]string{"venue"},
	)

	// Funding metrics
	FundingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cs_funding_rate",
			Help: "Current funding rate",
		},
		[]string{"venue", "symbol"},
	)

	// Evaluation metrics
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cs_evaluation_duration_seconds",
			Help:    "Time to evaluate one cross-venue scan",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	OpportunitiesFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cs_opportunities_found",
			Help: "Number of opportunity rows produced by the last scan",
		},
	)

	BestSpreadPct = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cs_best_spread_pct",
			Help: "Gross spread percentage of the top-ranked opportunity",
		},
	)

	// Position metrics
	PositionNotional = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cs_position_notional_usd",
			Help: "Open hedged notional per symbol pair in USD",
		},
		[]string{"symbol"},
	)

	TradeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_trade_events_total",
			Help: "Total number of trade cycle events",
		},
		[]string{"event"},
	)

	// REST metrics
	RestFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cs_rest_fetch_duration_seconds",
			Help:    "Time to fetch data from a venue REST API",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"venue", "endpoint"},
	)

	RestFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_rest_fetch_errors_total",
			Help: "Total number of venue REST API fetch errors",
		},
		[]string{"venue", "endpoint"},
	)

	// Redis metrics
	RedisPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cs_redis_publish_duration_seconds",
			Help:    "Time to publish message to Redis",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"channel"},
	)

	RedisPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cs_redis_publish_errors_total",
			Help: "Total number of Redis publish errors",
		},
		[]string{"channel"},
	)
)

// Timer is a helper for measuring operation duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram
func (t *Timer) ObserveDuration(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// RecordQuoteUpdates records applied cache updates for a venue
func RecordQuoteUpdates(venue string, n int) {
	QuoteUpdates.WithLabelValues(venue).Add(float64(n))
}

// RecordConnectionStatus records connection status
func RecordConnectionStatus(venue string, connected bool) {
	status := 0.0
	if connected {
		status = 1.0
	}
	ConnectionStatus.WithLabelValues(venue).Set(status)
}

// RecordReconnect records a reconnection attempt
func RecordReconnect(venue string) {
	ConnectionReconnects.WithLabelValues(venue).Inc()
}

// RecordStreamError records a stream session failure
func RecordStreamError(venue string) {
	StreamErrors.WithLabelValues(venue).Inc()
}

// RecordFundingRate records a funding rate update
func RecordFundingRate(venue, symbol string, rate float64) {
	FundingRate.WithLabelValues(venue, symbol).Set(rate)
}

// RecordScan records the outcome of one evaluation pass
func RecordScan(elapsed time.Duration, rows int, bestPct float64) {
	EvaluationDuration.Observe(elapsed.Seconds())
	OpportunitiesFound.Set(float64(rows))
	if rows > 0 {
		BestSpreadPct.Set(bestPct)
	}
}

// RecordTradeEvent records a trade cycle event by kind
func RecordTradeEvent(event string) {
	TradeEvents.WithLabelValues(event).Inc()
}

// Server starts the Prometheus metrics HTTP server
type Server struct {
	addr   string
	server *http.Server
}

// NewServer creates a new metrics server
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start starts the metrics server
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("Starting metrics server")
	return s.server.ListenAndServe()
}

// Stop stops the metrics server gracefully
func (s *Server) Stop() error {
	return s.server.Close()
}
