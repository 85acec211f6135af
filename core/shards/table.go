package shards

import (
	"encoding/binary"
	"github.com/deckarep/golang-set"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/crypto"
	"github.com/pkg/errors"
	"sort"
	"sync"
)

var (
	ErrNoShards         = errors.New("total shards should be positive")
	ErrCapacityTooSmall = errors.New("global tps capacity is less than shard tps limit")
)

type NodeIdentity struct {
	PeerId   peer.ID        `json:"peer_id"`
	ShardId  common.ShardId `json:"shard_id"`
	Verified bool           `json:"verified"`
}

// Table maps every known node to exactly one shard. The shard count is fixed for the
// table's lifetime.
type Table struct {
	totalShards       uint32
	shardTpsLimit     uint64
	globalTpsCapacity uint64

	mutex       sync.RWMutex
	assignments map[peer.ID]*NodeIdentity
	members     map[common.ShardId]mapset.Set
}

func NewTable(totalShards uint32, shardTpsLimit, globalTpsCapacity uint64) (*Table, error) {
	if totalShards == 0 {
		return nil, ErrNoShards
	}
	if globalTpsCapacity < shardTpsLimit {
		return nil, errors.Wrapf(ErrCapacityTooSmall, "capacity=%v, limit=%v", globalTpsCapacity, shardTpsLimit)
	}
	t := &Table{
		totalShards:       totalShards,
		shardTpsLimit:     shardTpsLimit,
		globalTpsCapacity: globalTpsCapacity,
		assignments:       make(map[peer.ID]*NodeIdentity),
		members:           make(map[common.ShardId]mapset.Set),
	}
	for i := uint32(0); i < totalShards; i++ {
		t.members[common.ShardId(i)] = mapset.NewThreadUnsafeSet()
	}
	return t, nil
}

// ShardOf is the assignment function: keccak256(id) mod totalShards.
func ShardOf(id peer.ID, totalShards uint32) common.ShardId {
	if totalShards <= 1 {
		return 0
	}
	h := crypto.Hash([]byte(id))
	return common.ShardId(binary.BigEndian.Uint64(h[:8]) % uint64(totalShards))
}

func (t *Table) TotalShards() uint32 {
	return t.totalShards
}

func (t *Table) ShardTpsLimit() uint64 {
	return t.shardTpsLimit
}

func (t *Table) GlobalTpsCapacity() uint64 {
	return t.globalTpsCapacity
}

// Assign registers id and returns its shard. Repeated calls return the same shard.
func (t *Table) Assign(id peer.ID) common.ShardId {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if identity, ok := t.assignments[id]; ok {
		return identity.ShardId
	}
	shardId := ShardOf(id, t.totalShards)
	t.assignments[id] = &NodeIdentity{PeerId: id, ShardId: shardId}
	t.members[shardId].Add(id)
	return shardId
}

// MarkVerified flips the identity's verified flag. It never flips back.
func (t *Table) MarkVerified(id peer.ID) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	identity, ok := t.assignments[id]
	if !ok {
		return false
	}
	changed := !identity.Verified
	identity.Verified = true
	return changed
}

func (t *Table) Remove(id peer.ID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	identity, ok := t.assignments[id]
	if !ok {
		return
	}
	t.members[identity.ShardId].Remove(id)
	delete(t.assignments, id)
}

func (t *Table) Identity(id peer.ID) (NodeIdentity, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	identity, ok := t.assignments[id]
	if !ok {
		return NodeIdentity{}, false
	}
	return *identity, true
}

// Members returns the nodes of a shard sorted by id.
func (t *Table) Members(shardId common.ShardId) []peer.ID {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	set, ok := t.members[shardId]
	if !ok {
		return nil
	}
	result := make([]peer.ID, 0, set.Cardinality())
	for item := range set.Iter() {
		result = append(result, item.(peer.ID))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}

func (t *Table) Size() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.assignments)
}

// RecommendedShards is the advisory shard count for the current network size.
func (t *Table) RecommendedShards() int {
	return common.CalculateShardsNumber(common.MinShardSize, common.MaxShardSize, t.Size(), int(t.totalShards))
}
