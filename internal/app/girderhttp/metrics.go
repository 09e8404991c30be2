package girderhttp

import "github.com/prometheus/client_golang/prometheus"

type serverMetrics struct {
	uploadsStarted   prometheus.Counter
	uploadsCompleted prometheus.Counter
	chunkBytes       prometheus.Counter
	offsetMismatches prometheus.Counter
	gcRemoved        prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		uploadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "girder_stub", Name: "uploads_started_total", Help: "Upload slots created.",
		}),
		uploadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "girder_stub", Name: "uploads_completed_total", Help: "Uploads finalized into files.",
		}),
		chunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "girder_stub", Name: "chunk_bytes_total", Help: "Bytes accepted in chunks.",
		}),
		offsetMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "girder_stub", Name: "offset_mismatches_total", Help: "Chunks rejected for a wrong offset.",
		}),
		gcRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "girder_stub", Name: "gc_removed_uploads_total", Help: "Stale uploads removed by GC.",
		}),
	}
	reg.MustRegister(m.uploadsStarted, m.uploadsCompleted, m.chunkBytes, m.offsetMismatches, m.gcRemoved)
	return m
}
