// Package observability bundles the tracing and metrics plumbing of the
// application.
//
// This file exposes Prometheus instrumentation for the domain itself (not
// HTTP traffic, which belongs to the embedding layer): how many weighted
// votes were cast, how content access checks resolve, and how often gated
// content was rendered obscured. Label sets are deliberately tiny to keep
// cardinality bounded. All collectors are safe for concurrent use.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// votesCast counts individual vote rows, i.e. units, not submissions;
	// a 3-property owner adds 3.
	votesCast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "community_votes_cast_total",
			Help: "Total number of weighted votes recorded.",
		},
	)

	// accessChecks counts guard decisions by outcome ("true"/"false").
	accessChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_content_access_checks_total",
			Help: "Total number of content access checks by outcome.",
		},
		[]string{"granted"},
	)

	// obscured counts renders of the degraded projection of gated content.
	obscured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "community_content_obscured_total",
			Help: "Total number of obscured content renders.",
		},
	)
)

func init() {
	prometheus.MustRegister(votesCast, accessChecks, obscured)
}

// VotesCast adds n recorded vote rows to the counter.
func VotesCast(n int) {
	if n > 0 {
		votesCast.Add(float64(n))
	}
}

// AccessCheck records one guard decision.
func AccessCheck(granted bool) {
	accessChecks.WithLabelValues(strconv.FormatBool(granted)).Inc()
}

// ContentObscured records one obscured render.
func ContentObscured() {
	obscured.Inc()
}
