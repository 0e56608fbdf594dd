package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_jobs_total",
			Help: "Delivery jobs processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docrelay_job_duration_seconds",
			Help:    "Delivery job run time",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"kind"},
	)

	DocumentsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_documents_delivered_total",
			Help: "Documents delivered by channel",
		},
		[]string{"channel"},
	)

	DocumentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_document_failures_total",
			Help: "Per-document failures by stage",
		},
		[]string{"stage"},
	)

	CandidatesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docrelay_candidates_skipped_total",
			Help: "Batch selections skipped because the candidate could not be loaded",
		},
	)

	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docrelay_emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docrelay_email_failures_total",
			Help: "Total failed emails",
		},
	)

	DeadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docrelay_dead_letters_total",
			Help: "Jobs dropped without further retry",
		},
		[]string{"reason"},
	)
)

func Init() {
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(DocumentsDelivered)
	prometheus.MustRegister(DocumentFailures)
	prometheus.MustRegister(CandidatesSkipped)
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(DeadLetters)
}
