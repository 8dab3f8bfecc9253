package populate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics метрики цикла заселения
type Metrics struct {
	Observed       prometheus.Counter
	Duplicates     prometheus.Counter
	Populated      prometheus.Counter
	Failures       prometheus.Counter
	Pending        prometheus.Gauge
	Known          prometheus.Gauge
	DeriveDuration prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil метрики
// работают, но никуда не экспортируются.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Observed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "chunks_observed_total",
			Help:      "Чанки, впервые отмеченные как доступные.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "chunks_duplicate_total",
			Help:      "Повторные уведомления о уже известных чанках.",
		}),
		Populated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "chunks_populated_total",
			Help:      "Чанки, для которых записан узел.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "populate_failures_total",
			Help:      "Готовые чанки, заселение которых завершилось ошибкой.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "chunks_pending",
			Help:      "Известные чанки, ожидающие соседей.",
		}),
		Known: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "chunks_known",
			Help:      "Все известные чанки.",
		}),
		DeriveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geography",
			Subsystem: "frontier",
			Name:      "populate_duration_seconds",
			Help:      "Длительность заселения одного чанка (запросы к хосту, расчёт, запись).",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.Observed, m.Duplicates, m.Populated, m.Failures, m.Pending, m.Known, m.DeriveDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
