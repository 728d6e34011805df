// ABOUTME: Prometheus metrics for logins, stories, interactions, generation and HTTP traffic
// ABOUTME: Collectors register on a caller-supplied registry so tests stay isolated

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset of metrics the services report into.
type Recorder interface {
	RecordLogin(result string)
	RecordRegistration(result string)
	RecordStoryCreated()
	RecordStoryView()
	RecordLike(target, outcome string)
	RecordFollow(outcome string)
	RecordGeneration(kind, result string)
}

// Collector is the Prometheus implementation of Recorder plus HTTP instrumentation.
type Collector struct {
	logins        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	storiesCreate prometheus.Counter
	storyViews    prometheus.Counter
	likes         *prometheus.CounterVec
	follows       *prometheus.CounterVec
	generations   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyteller_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyteller_registrations_total",
			Help: "Registration attempts by result",
		}, []string{"result"}),
		storiesCreate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyteller_stories_created_total",
			Help: "Stories saved",
		}),
		storyViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyteller_story_views_total",
			Help: "Story views counted",
		}),
		likes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyteller_likes_total",
			Help: "Like requests by target type and outcome",
		}, []string{"target", "outcome"}),
		follows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyteller_follows_total",
			Help: "Follow requests by outcome",
		}, []string{"outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyteller_generations_total",
			Help: "Content, speech and image generation calls by result",
		}, []string{"kind", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyteller_http_requests_total",
			Help: "HTTP responses by method and status code",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyteller_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.storiesCreate,
		c.storyViews,
		c.likes,
		c.follows,
		c.generations,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordLogin counts a login attempt.
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordRegistration counts a registration attempt.
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordStoryCreated counts a saved story.
func (c *Collector) RecordStoryCreated() {
	c.storiesCreate.Inc()
}

// RecordStoryView counts a story view.
func (c *Collector) RecordStoryView() {
	c.storyViews.Inc()
}

// RecordLike counts a like request.
func (c *Collector) RecordLike(target, outcome string) {
	c.likes.WithLabelValues(target, outcome).Inc()
}

// RecordFollow counts a follow request.
func (c *Collector) RecordFollow(outcome string) {
	c.follows.WithLabelValues(outcome).Inc()
}

// RecordGeneration counts a generator call.
func (c *Collector) RecordGeneration(kind, result string) {
	c.generations.WithLabelValues(kind, result).Inc()
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordLogin(string)              {}
func (Nop) RecordRegistration(string)       {}
func (Nop) RecordStoryCreated()             {}
func (Nop) RecordStoryView()                {}
func (Nop) RecordLike(string, string)       {}
func (Nop) RecordFollow(string)             {}
func (Nop) RecordGeneration(string, string) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
