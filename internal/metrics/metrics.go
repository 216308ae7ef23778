// Package metrics defines the MetricsSink collaborator and a Prometheus
// backed implementation of it.
package metrics

import "net/http"

// Sink is the narrow metrics interface every other package depends on.
// Nothing outside this package imports prometheus/client_golang directly.
type Sink interface {
	// SetEntityCount reports the current number of live entities for a
	// recipient type.
	SetEntityCount(entityType string, count int)
	// SetShardCount reports the number of shards currently assigned to
	// this pod.
	SetShardCount(count int)
	// SetSingletonRunning reports whether a named singleton is running
	// on this pod (1) or not (0).
	SetSingletonRunning(name string, running bool)
	// IncSendOutcome counts a completed send by its outcome: "ok",
	// "timeout", "failed".
	IncSendOutcome(outcome string)
	// IncUnhealthyPodReport counts a debounced unhealthy-pod
	// notification sent to the Shard Manager.
	IncUnhealthyPodReport()
	// Handler returns the HTTP handler to mount at the metrics scrape
	// endpoint.
	Handler() http.Handler
}
