// Package metrics exposes Prometheus collectors for the compression pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"equipix/compress"
)

var (
	imagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equipix_images_total",
		Help: "Images run through the pipeline by outcome (accepted or degraded)",
	}, []string{"outcome"})

	degradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "equipix_degraded_total",
		Help: "Degraded images by reason",
	}, []string{"reason"})

	attempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "equipix_compression_attempts",
		Help:    "Encode attempts consumed per image",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	inputBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equipix_input_bytes_total",
		Help: "Bytes received by the pipeline",
	})

	outputBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equipix_output_bytes_total",
		Help: "Bytes produced by the pipeline",
	})

	batchesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equipix_batches_rejected_total",
		Help: "Batches refused because they exceeded the item ceiling",
	})
)

func init() {
	prometheus.MustRegister(imagesTotal, degradedTotal, attempts, inputBytes, outputBytes, batchesRejected)
}

// ObserveResult records one pipeline run. Its signature matches
// compress.Observer so it can be passed to compress.WithObserver.
func ObserveResult(src compress.SourceImage, res *compress.Result) {
	if res == nil {
		return
	}
	inputBytes.Add(float64(len(src.Data)))
	outputBytes.Add(float64(res.Size))
	attempts.Observe(float64(res.AttemptCount()))
	if res.Degraded {
		imagesTotal.WithLabelValues("degraded").Inc()
		degradedTotal.WithLabelValues(string(res.Reason)).Inc()
		return
	}
	imagesTotal.WithLabelValues("accepted").Inc()
}

// BatchRejected counts a batch refused by the item ceiling.
func BatchRejected() {
	batchesRejected.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
