package uploadsvc

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	chunkAccepted  = "accepted"
	chunkRejected  = "rejected"
	chunkTransport = "transport_error"

	uploadComplete  = "complete"
	uploadFailed    = "failed"
	uploadCancelled = "cancelled"
)

// Metrics — счётчики координатора. nil-значение допустимо и ничего не считает.
type Metrics struct {
	Chunks  *prometheus.CounterVec
	Bytes   prometheus.Counter
	Resyncs prometheus.Counter
	Uploads *prometheus.CounterVec
}

// NewMetrics регистрирует счётчики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uploader",
			Name:      "chunks_total",
			Help:      "Chunk requests by outcome.",
		}, []string{"result"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uploader",
			Name:      "accepted_bytes_total",
			Help:      "Bytes acknowledged by the server.",
		}),
		Resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uploader",
			Name:      "offset_resyncs_total",
			Help:      "Offset reconciliations after failures of unknown outcome.",
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uploader",
			Name:      "uploads_total",
			Help:      "Finished transfers by outcome.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Chunks, m.Bytes, m.Resyncs, m.Uploads)
	}
	return m
}

func (m *Metrics) chunk(result string, n int64) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(result).Inc()
	if n > 0 {
		m.Bytes.Add(float64(n))
	}
}

func (m *Metrics) resync() {
	if m == nil {
		return
	}
	m.Resyncs.Inc()
}

func (m *Metrics) upload(result string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(result).Inc()
}
