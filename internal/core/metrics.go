package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterimport_preview_rows_total",
		Help: "Rows seen by preview, by kind and outcome (valid, invalid).",
	}, []string{"kind", "outcome"})

	recordsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rosterimport_commit_rows_total",
		Help: "Rows processed by commit, by kind and outcome (created, failed).",
	}, []string{"kind", "outcome"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rosterimport_phase_duration_seconds",
		Help:    "Duration of preview and commit calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "phase"})
)
