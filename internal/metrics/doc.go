// Package metrics exposes Prometheus counters and histograms for the storyteller
// server under the storyteller_ prefix. Components depend on the Recorder
// interface; Nop satisfies it when metrics are disabled.
package metrics
