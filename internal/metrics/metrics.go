package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_cycles_total",
			Help: "Total number of fetch-and-deliver cycles by outcome.",
		},
		[]string{"status"},
	)
	cyclesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offers_cycles_skipped_total",
			Help: "Ticks skipped because a previous cycle was still running.",
		},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "offers_cycle_duration_seconds",
			Help:    "Histogram of full cycle durations.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
	offersFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offers_fetched_total",
			Help: "Total number of raw offers received from the source.",
		},
	)
	offersDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_delivered_total",
			Help: "Total number of offers delivered to the channel by tier.",
		},
		[]string{"tier"},
	)
	deliveryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offers_delivery_failures_total",
			Help: "Total number of failed delivery attempts.",
		},
	)
	ledgerEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "offers_ledger_entries",
			Help: "Current number of identities recorded in the sent-offer ledger.",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cyclesSkipped)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(offersFetched)
	prometheus.MustRegister(offersDelivered)
	prometheus.MustRegister(deliveryFailures)
	prometheus.MustRegister(ledgerEntries)
}

// RecordCycle записывает исход и длительность цикла.
func RecordCycle(status string, duration time.Duration) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// RecordCycleSkipped отмечает пропущенный тик (цикл ещё шёл).
func RecordCycleSkipped() {
	cyclesSkipped.Inc()
}

// RecordFetched записывает количество полученных офферов.
func RecordFetched(n int) {
	offersFetched.Add(float64(n))
}

// RecordDelivered отмечает доставленный оффер.
func RecordDelivered(tier string) {
	offersDelivered.WithLabelValues(tier).Inc()
}

// RecordDeliveryFailure отмечает неудачную доставку.
func RecordDeliveryFailure() {
	deliveryFailures.Inc()
}

// SetLedgerSize обновляет размер журнала отправленных офферов.
func SetLedgerSize(n int) {
	ledgerEntries.Set(float64(n))
}

// MetricsHandler возвращает HTTP-обработчик для экспорта метрик Prometheus.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
