package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	// QueryOutcomeOK is the label of the queries answered directly
	QueryOutcomeOK = "ok"
	// QueryOutcomeCreated is the label of the queries answered after the
	// creation of the view definition
	QueryOutcomeCreated = "created"
	// QueryOutcomeError is the label of the queries that have failed
	QueryOutcomeError = "error"

	// DefinitionCreated is the label of the view definitions created
	DefinitionCreated = "created"
	// DefinitionConflict is the label of the view definitions that were
	// already present
	DefinitionConflict = "conflict"
	// DefinitionError is the label of the failed creations
	DefinitionError = "error"
)

// HTTPTotalDurations is a summary metric of the durations of http requests,
// labelled by method and status code
var HTTPTotalDurations = prometheus.NewSummaryVec(
	prometheus.SummaryOpts{
		Namespace: "http",
		Subsystem: "all",
		Name:      "total_duration",

		Help: "Durations of http requests, labelled by method and status code",

		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
	[]string{"method", "code"},
)

// ViewQueries counts the queries sent to the auto views, labelled by outcome.
var ViewQueries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoviews",
		Subsystem: "view",
		Name:      "queries_total",

		Help: "Number of queries on the auto views, labelled by outcome (ok, created or error).",
	},
	[]string{"outcome"},
)

// ViewDefinitions counts the attempts to create a view definition, labelled
// by result.
var ViewDefinitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autoviews",
		Subsystem: "view",
		Name:      "definitions_total",

		Help: `Number of attempts to create a view definition, labelled by result. A
conflict means that another process has created the definition first.`,
	},
	[]string{"result"},
)

// ViewQueryDurations is a summary of the durations in seconds of the queries
// on the auto views, including the creation of the definition when needed.
var ViewQueryDurations = prometheus.NewSummary(
	prometheus.SummaryOpts{
		Namespace: "autoviews",
		Subsystem: "view",
		Name:      "query_duration_seconds",

		Help: "Durations in seconds of the queries on the auto views.",

		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
)

func init() {
	prometheus.MustRegister(
		HTTPTotalDurations,
		ViewQueries,
		ViewDefinitions,
		ViewQueryDurations,
	)
}
