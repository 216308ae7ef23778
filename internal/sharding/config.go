package sharding

import "time"

// Config collects every tunable named in the configuration table, shared by
// the entity manager, router, singleton controller and refresher. It is
// built by internal/config and passed down by value.
type Config struct {
	// NumShards is the size of the shard ring, N in shardOf.
	NumShards int

	// EntityMaxIdleTime is how long an entity may sit without a message
	// before the idle expiration loop terminates it.
	EntityMaxIdleTime time.Duration

	// EntityTerminationTimeout bounds how long termination waits for an
	// entity's behavior to return; the slot is removed only once it does.
	EntityTerminationTimeout time.Duration

	// SendTimeout bounds how long Messenger.Send waits for a reply.
	SendTimeout time.Duration

	// SendRetryInterval is the backoff between retries on
	// EntityNotManagedByThisPod and PodUnavailable.
	SendRetryInterval time.Duration

	// UnhealthyPodReportInterval debounces repeated "pod X is
	// unavailable" notifications to the Shard Manager.
	UnhealthyPodReportInterval time.Duration

	// RefreshAssignmentsRetryInterval is the backoff between attempts to
	// re-establish the assignment bootstrap+subscribe pipeline.
	RefreshAssignmentsRetryInterval time.Duration
}

// DefaultConfig returns conservative defaults for production use.
func DefaultConfig() Config {
	return Config{
		NumShards:                       300,
		EntityMaxIdleTime:               90 * time.Second,
		EntityTerminationTimeout:        3 * time.Second,
		SendTimeout:                     10 * time.Second,
		SendRetryInterval:               200 * time.Millisecond,
		UnhealthyPodReportInterval:      5 * time.Second,
		RefreshAssignmentsRetryInterval: 5 * time.Second,
	}
}
