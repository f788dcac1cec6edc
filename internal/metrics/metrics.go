// Package metrics exposes Prometheus instrumentation for the ingestion and
// retrieval paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors. A nil *Metrics records nothing.
//
// Metrics:
//   - driverag_folders_listed_total
//   - driverag_documents_extracted_total{kind}
//   - driverag_items_skipped_total{kind}
//   - driverag_chunks_emitted_total
//   - driverag_records_upserted_total
//   - driverag_searches_total{outcome}
//   - driverag_ingest_duration_seconds
type Metrics struct {
	FoldersListed      prometheus.Counter
	DocumentsExtracted *prometheus.CounterVec
	ItemsSkipped       *prometheus.CounterVec
	ChunksEmitted      prometheus.Counter
	RecordsUpserted    prometheus.Counter
	Searches           *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FoldersListed: f.NewCounter(prometheus.CounterOpts{
			Name: "driverag_folders_listed_total",
			Help: "Total number of folders listed during traversal",
		}),
		DocumentsExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "driverag_documents_extracted_total",
			Help: "Total number of documents with non-empty extracted text",
		}, []string{"kind"}),
		ItemsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "driverag_items_skipped_total",
			Help: "Total number of items that produced no text",
		}, []string{"kind"}),
		ChunksEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "driverag_chunks_emitted_total",
			Help: "Total number of chunks produced by the chunker",
		}),
		RecordsUpserted: f.NewCounter(prometheus.CounterOpts{
			Name: "driverag_records_upserted_total",
			Help: "Total number of vector records acknowledged by the index",
		}),
		Searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "driverag_searches_total",
			Help: "Total number of searches by outcome",
		}, []string{"outcome"}),
		IngestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "driverag_ingest_duration_seconds",
			Help:    "Duration of complete ingestion runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}

func (m *Metrics) FolderListed() {
	if m == nil {
		return
	}
	m.FoldersListed.Inc()
}

func (m *Metrics) DocumentExtracted(kind string) {
	if m == nil {
		return
	}
	m.DocumentsExtracted.WithLabelValues(kind).Inc()
}

func (m *Metrics) ItemSkipped(kind string) {
	if m == nil {
		return
	}
	m.ItemsSkipped.WithLabelValues(kind).Inc()
}

func (m *Metrics) ChunkEmitted() {
	if m == nil {
		return
	}
	m.ChunksEmitted.Inc()
}

func (m *Metrics) Upserted(n int) {
	if m == nil {
		return
	}
	m.RecordsUpserted.Add(float64(n))
}

func (m *Metrics) SearchDone(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIngest(d time.Duration) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(d.Seconds())
}
