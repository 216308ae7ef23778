// Package poolcache implements the Connection Cache external interface: a
// bounded pool of pooled outbound connections keyed by pod address.
package poolcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Conn is the narrow shape of a pooled connection this package manages: a
// dialer produces one, and it knows how to close itself. grpc.ClientConn
// satisfies this without modification.
type Conn interface {
	Close() error
}

// Dialer creates a new Conn for addr. Implemented by
// internal/transport's gRPC dialing.
type Dialer func(addr sharding.PodAddress) (Conn, error)

// Cache is an LRU pool of Conns keyed by PodAddress. Evicted connections are
// closed automatically.
type Cache struct {
	mu   sync.Mutex
	dial Dialer
	lru  *lru.Cache[sharding.PodAddress, Conn]
}

// New builds a Cache holding at most size connections. size must be > 0.
func New(size int, dial Dialer) (*Cache, error) {
	c := &Cache{dial: dial}
	evict := func(_ sharding.PodAddress, conn Conn) {
		_ = conn.Close()
	}
	l, err := lru.NewWithEvict(size, evict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get returns a cached connection to addr, dialing and caching a new one on
// a miss.
func (c *Cache) Get(addr sharding.PodAddress) (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.lru.Get(addr); ok {
		return conn, nil
	}

	conn, err := c.dial(addr)
	if err != nil {
		return nil, err
	}
	c.lru.Add(addr, conn)
	return conn, nil
}

// Invalidate drops and closes any cached connection to addr, forcing the
// next Get to redial. Used after any failed RPC on a cached connection.
func (c *Cache) Invalidate(addr sharding.PodAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(addr)
}

// Close evicts and closes every cached connection.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len reports the number of cached connections.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
