package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal counts orchestrator calls by outcome (error kind or "success")
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_pdf_generations_total",
			Help: "Total number of PDF generation requests by outcome",
		},
		[]string{"outcome"},
	)

	// GenerationDuration observes end-to-end generation latency
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resume_pdf_generation_duration_seconds",
			Help:    "Duration of PDF generation requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	// CompileJobsTotal counts sandbox compile jobs by terminal state
	CompileJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_pdf_compile_jobs_total",
			Help: "Total number of sandbox compile jobs by terminal state",
		},
		[]string{"state"},
	)

	// CompileJobsActive tracks sandbox containers currently owned by this process
	CompileJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resume_pdf_compile_jobs_active",
			Help: "Number of sandbox compile jobs currently holding a container",
		},
	)

	// ContainerCleanupFailures counts failed container removals (orphan candidates)
	ContainerCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resume_pdf_container_cleanup_failures_total",
			Help: "Total number of sandbox containers that could not be removed",
		},
	)

	// OrphansRemoved counts containers removed by the orphan sweeper
	OrphansRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resume_pdf_orphan_containers_removed_total",
			Help: "Total number of orphaned sandbox containers removed by the sweeper",
		},
	)

	// InjectionRejections counts resumes rejected by the content security validator
	InjectionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_pdf_injection_rejections_total",
			Help: "Total number of resumes rejected for typesetting injection by rule",
		},
		[]string{"rule"},
	)

	// CacheLoads counts cache misses that triggered a load, per cache
	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_pdf_cache_loads_total",
			Help: "Total number of cache loads by cache name",
		},
		[]string{"cache"},
	)

	// TranslationFallbacks counts locale requests served by the default bundle,
	// labelled by the locale that served them
	TranslationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_pdf_translation_fallbacks_total",
			Help: "Total number of translation lookups that fell back to the default locale",
		},
		[]string{"resolved_locale"},
	)
)
