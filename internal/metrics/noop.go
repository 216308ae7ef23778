package metrics

import "net/http"

// Noop discards every metric. Used by tests and by components that are
// constructed without a metrics backend wired in yet.
type Noop struct{}

var _ Sink = Noop{}

func (Noop) SetEntityCount(string, int)       {}
func (Noop) SetShardCount(int)                {}
func (Noop) SetSingletonRunning(string, bool) {}
func (Noop) IncSendOutcome(string)            {}
func (Noop) IncUnhealthyPodReport()           {}
func (Noop) Handler() http.Handler {
	return http.NotFoundHandler()
}
