// Package sharding holds the value types shared by every other package in
// this module: pod addresses, shard identifiers, recipient types and the
// consistent-hash function that maps an entity to a shard.
package sharding

import (
	"fmt"
	"hash/fnv"
)

// PodAddress identifies a pod by network location. Two addresses compare
// equal by value, which is what the assignment table and the connection
// cache key off.
type PodAddress struct {
	Host string
	Port int
}

// String renders "host:port", the form used for gRPC dialing and for log
// fields.
func (a PodAddress) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// IsZero reports whether a is the empty address.
func (a PodAddress) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// ShardID is a shard index in [1, N] for an N-shard ring. 0 is reserved for
// "no shard" / "unassigned".
type ShardID int

// SingletonShardID is the sentinel shard that owns singleton placement.
// Whichever pod is assigned this shard runs every registered singleton.
const SingletonShardID ShardID = 1

// RecipientVariant distinguishes point-to-point entities from fan-out
// topics; both are addressed by a RecipientType name plus an entity ID.
type RecipientVariant int

const (
	// Entity is a point-to-point recipient: at most one instance per ID,
	// owned by exactly one pod at a time.
	Entity RecipientVariant = iota
	// Topic is a fan-out recipient: every pod that has a local
	// subscriber receives the message.
	Topic
)

func (v RecipientVariant) String() string {
	switch v {
	case Entity:
		return "entity"
	case Topic:
		return "topic"
	default:
		return "unknown"
	}
}

// ShardFunc maps an entity ID to a shard in [1, numShards]. Recipient types
// may supply their own to express domain-specific locality; the default is
// FNV1aShard.
type ShardFunc func(entityID string, numShards int) ShardID

// RecipientType names a family of entities or a topic and carries the
// sharding behavior for that family.
type RecipientType struct {
	Name      string
	Variant   RecipientVariant
	ShardFunc ShardFunc
}

// NewEntityType builds a RecipientType of variant Entity using the default
// FNV-1a shard function.
func NewEntityType(name string) RecipientType {
	return RecipientType{Name: name, Variant: Entity, ShardFunc: FNV1aShard}
}

// NewTopicType builds a RecipientType of variant Topic using the default
// FNV-1a shard function.
func NewTopicType(name string) RecipientType {
	return RecipientType{Name: name, Variant: Topic, ShardFunc: FNV1aShard}
}

// ShardOf resolves the shard owning entityID under numShards, using the
// recipient type's ShardFunc, falling back to FNV1aShard when unset.
func (rt RecipientType) ShardOf(entityID string, numShards int) ShardID {
	f := rt.ShardFunc
	if f == nil {
		f = FNV1aShard
	}
	return f(entityID, numShards)
}

// FNV1aShard is the default ShardFunc: fingerprint(entityID) mod numShards,
// shifted into [1, numShards]. Matches the consistent-hashing approach used
// for shard ownership elsewhere in this codebase's lineage (FNV-1a over the
// key, modulo the ring size).
func FNV1aShard(entityID string, numShards int) ShardID {
	if numShards <= 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	return ShardID(int(h.Sum32())%numShards) + 1
}
