// Package metrics holds the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing, so components can be built without it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flyaway"

// Submission outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeInvalid     = "invalid"
	OutcomeNoSpecies   = "no_species"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

type Metrics struct {
	submissions          *prometheus.CounterVec
	classifierRequests   *prometheus.CounterVec
	classifierDuration   *prometheus.HistogramVec
	funFactRequests      *prometheus.CounterVec
	achievementsComplete prometheus.Counter
	speciesCreated       prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Observation submissions by outcome.",
		}, []string{"outcome"}),
		classifierRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_requests_total",
			Help:      "Classifier calls by kingdom and status.",
		}, []string{"kingdom", "status"}),
		classifierDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_request_duration_seconds",
			Help:      "Classifier call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kingdom"}),
		funFactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "funfact_requests_total",
			Help:      "Fun fact generations by provider and status.",
		}, []string{"provider", "status"}),
		achievementsComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_completed_total",
			Help:      "Achievements completed by users.",
		}),
		speciesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "species_created_total",
			Help:      "Species records created from classifications.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.submissions,
			m.classifierRequests,
			m.classifierDuration,
			m.funFactRequests,
			m.achievementsComplete,
			m.speciesCreated,
		)
	}
	return m
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClassifierRequest(kingdom, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.classifierRequests.WithLabelValues(kingdom, status).Inc()
	m.classifierDuration.WithLabelValues(kingdom).Observe(d.Seconds())
}

func (m *Metrics) FunFact(provider, status string) {
	if m == nil {
		return
	}
	m.funFactRequests.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) AchievementCompleted() {
	if m == nil {
		return
	}
	m.achievementsComplete.Inc()
}

func (m *Metrics) SpeciesCreated() {
	if m == nil {
		return
	}
	m.speciesCreated.Inc()
}
