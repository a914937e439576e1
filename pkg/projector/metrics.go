package projector

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	buildSeconds prometheus.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projector_cache_hits_total",
			Help: "Total number of build requests served from the projector cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "projector_cache_misses_total",
			Help: "Total number of build requests that compiled a new projector",
		}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:                            "projector_build_seconds",
			Help:                            "Time taken by the backend compile step in seconds",
			Buckets:                         prometheus.DefBuckets,
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.cacheHits,
		m.cacheMisses,
		m.buildSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
