package scheduler

import (
	"encoding/binary"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/core/patience"
	"github.com/patience-network/patience-go/core/shards"
	"github.com/patience-network/patience-go/crypto"
	"github.com/patience-network/patience-go/log"
	"github.com/pkg/errors"
	"sort"
	"sync"
	"time"
)

var ErrUnknownNode = errors.New("node is not a member")

type State uint8

const (
	Connecting State = iota
	Patience
	Queue
	Leader
)

func (s State) String() string {
	switch s {
	case Patience:
		return "Patience"
	case Queue:
		return "Queue"
	case Leader:
		return "Leader"
	default:
		return "Connecting"
	}
}

type member struct {
	id        peer.ID
	shardId   common.ShardId
	connected bool
	vdfActive bool
	verified  bool
	state     State
}

func (m *member) eligible() bool {
	return m.connected && m.vdfActive && m.verified
}

// NodeView is the scheduler's view of one node at the moment it was taken.
type NodeView struct {
	Id                 peer.ID
	ShardId            common.ShardId
	State              State
	QueuePosition      uint64
	EstimatedBlocks    uint64
	AccumulatedSeconds uint64
	Progress           float64
	RemainingSeconds   uint64
	IsSlotLeader       bool
}

type SlotLeader struct {
	ShardId common.ShardId
	Slot    uint64
	Leader  peer.ID
}

func (l SlotLeader) Empty() bool {
	return l.Leader == ""
}

// Scheduler is the per-shard leader rotation state machine:
// Connecting -> Patience -> Queue -> Leader -> Queue.
// It has no notion of wall time; callers drive it with Tick and AdvanceSlot, so
// instances fed the same calls elect the same leaders.
type Scheduler struct {
	table        *shards.Table
	tracker      *patience.Tracker
	slotDuration time.Duration

	mutex   sync.Mutex
	clock   uint64
	slot    uint64
	started bool
	members map[peer.ID]*member
	queues  map[common.ShardId]*queue
	leaders map[common.ShardId]peer.ID

	log          log.Logger
	throttledLog log.ThrottlingLogger
}

func NewScheduler(table *shards.Table, tracker *patience.Tracker, slotDuration time.Duration) *Scheduler {
	s := &Scheduler{
		table:        table,
		tracker:      tracker,
		slotDuration: slotDuration,
		members:      make(map[peer.ID]*member),
		queues:       make(map[common.ShardId]*queue),
		leaders:      make(map[common.ShardId]peer.ID),
	}
	for i := uint32(0); i < table.TotalShards(); i++ {
		s.queues[common.ShardId(i)] = newQueue()
	}
	s.log = log.New("component", "scheduler")
	s.throttledLog = log.NewThrottlingLogger(s.log, time.Minute)
	return s
}

func (s *Scheduler) Table() *shards.Table {
	return s.table
}

func (s *Scheduler) Tracker() *patience.Tracker {
	return s.tracker
}

// Join registers id as connected and returns its shard.
func (s *Scheduler) Join(id peer.ID) common.ShardId {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m, ok := s.members[id]
	if !ok {
		shardId := s.table.Assign(id)
		identity, _ := s.table.Identity(id)
		m = &member{id: id, shardId: shardId, verified: identity.Verified}
		s.members[id] = m
	}
	if !m.connected {
		m.connected = true
		s.tracker.Reset(id)
		s.setPatienceOrConnecting(m)
	}
	return m.shardId
}

// Disconnect drops accumulated patience and removes id from its queue. The node
// keeps its shard and verified flag.
func (s *Scheduler) Disconnect(id peer.ID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m, ok := s.members[id]
	if !ok || !m.connected {
		return
	}
	s.demote(m)
	m.connected = false
	m.vdfActive = false
	m.state = Connecting
	s.tracker.Reset(id)
}

// Leave disconnects id and forgets it entirely.
func (s *Scheduler) Leave(id peer.ID) {
	s.Disconnect(id)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.members[id]; !ok {
		return
	}
	delete(s.members, id)
	s.table.Remove(id)
	s.tracker.Forget(id)
}

func (s *Scheduler) MarkVerified(id peer.ID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m, ok := s.members[id]
	if !ok {
		return errors.Wrapf(ErrUnknownNode, "id=%v", id)
	}
	s.table.MarkVerified(id)
	if !m.verified {
		m.verified = true
		s.setPatienceOrConnecting(m)
	}
	return nil
}

// SetVdfActive records whether id's VDF worker is making progress. An inactive VDF
// pauses patience accrual but does not demote a queued node.
func (s *Scheduler) SetVdfActive(id peer.ID, active bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	m, ok := s.members[id]
	if !ok {
		return errors.Wrapf(ErrUnknownNode, "id=%v", id)
	}
	m.vdfActive = active
	return nil
}

func (s *Scheduler) setPatienceOrConnecting(m *member) {
	if m.state == Queue || m.state == Leader {
		return
	}
	if m.connected && m.verified {
		m.state = Patience
	} else {
		m.state = Connecting
	}
}

func (s *Scheduler) demote(m *member) {
	s.queues[m.shardId].remove(m.id)
	if s.leaders[m.shardId] == m.id {
		delete(s.leaders, m.shardId)
	}
}

// Tick credits one second of patience to every eligible node. Nodes completing
// patience on this tick enter their shard queue, ordered by node id among themselves.
func (s *Scheduler) Tick() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clock++
	for _, id := range s.sortedIds() {
		m := s.members[id]
		if !m.connected || !m.verified {
			continue
		}
		completed := s.tracker.OnSecondElapsed(id, m.eligible())
		if completed && m.state == Patience {
			s.queues[m.shardId].push(id, s.clock)
			m.state = Queue
			s.log.Debug("Node entered queue", "node", id, "shard", m.shardId)
		}
	}
}

// AdvanceSlot rotates every shard, in ascending shard order, once per slot elapsed
// since the current one: the previous leader re-enters its queue at the tail, then
// the head becomes the leader. The leader of slot therefore does not depend on which
// intermediate slots the caller observed. A shard with an empty queue has no leader
// for the slot. Calls for a slot that is not newer than the current one do not rotate.
func (s *Scheduler) AdvanceSlot(slot uint64) []SlotLeader {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	steps := uint64(1)
	if s.started {
		if slot <= s.slot {
			return s.slotLeaders()
		}
		steps = slot - s.slot
	}
	s.started = true
	s.slot = slot
	for i := uint32(0); i < s.table.TotalShards(); i++ {
		shardId := common.ShardId(i)
		for r := rotations(steps, s.rotationSize(shardId)); r > 0; r-- {
			s.rotate(shardId)
		}
	}
	return s.slotLeaders()
}

// rotationSize is the number of nodes taking turns in the shard.
func (s *Scheduler) rotationSize(shardId common.ShardId) uint64 {
	size := uint64(s.queues[shardId].len())
	if prev, ok := s.leaders[shardId]; ok {
		if m, ok := s.members[prev]; ok && m.connected {
			size++
		}
	}
	return size
}

// rotations reduces steps modulo a full turn of size nodes. It keeps at least one
// rotation so a leader that left is replaced.
func rotations(steps, size uint64) uint64 {
	if size == 0 || steps <= size {
		return steps
	}
	return size + (steps-size)%size
}

func (s *Scheduler) rotate(shardId common.ShardId) {
	s.clock++
	q := s.queues[shardId]
	if prev, ok := s.leaders[shardId]; ok {
		delete(s.leaders, shardId)
		if m, ok := s.members[prev]; ok && m.connected {
			q.push(prev, s.clock)
			m.state = Queue
		}
	}
	if id, ok := q.pop(); ok {
		s.leaders[shardId] = id
		s.members[id].state = Leader
	}
}

func (s *Scheduler) slotLeaders() []SlotLeader {
	result := make([]SlotLeader, 0, s.table.TotalShards())
	for i := uint32(0); i < s.table.TotalShards(); i++ {
		shardId := common.ShardId(i)
		result = append(result, SlotLeader{ShardId: shardId, Slot: s.slot, Leader: s.leaders[shardId]})
	}
	return result
}

func (s *Scheduler) CurrentSlot() (uint64, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.slot, s.started
}

func (s *Scheduler) Leader(shardId common.ShardId) peer.ID {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.leaders[shardId]
}

func (s *Scheduler) QueueLen(shardId common.ShardId) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	q, ok := s.queues[shardId]
	if !ok {
		return 0
	}
	return q.len()
}

// Commitment hashes the shard's rotation state: shard id, current leader and the
// queued node ids in order.
func (s *Scheduler) Commitment(shardId common.ShardId) common.Hash {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	shardBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(shardBytes, uint32(shardId))
	parts := [][]byte{shardBytes}
	parts = appendId(parts, s.leaders[shardId])
	if q, ok := s.queues[shardId]; ok {
		for _, id := range q.ordered() {
			parts = appendId(parts, id)
		}
	}
	return crypto.HashConcat(parts...)
}

func appendId(parts [][]byte, id peer.ID) [][]byte {
	prefix := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(prefix, uint64(len(id)))
	return append(parts, prefix[:n], []byte(id))
}

// Views returns the view of every member.
func (s *Scheduler) Views() map[peer.ID]NodeView {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	positions := make(map[peer.ID]uint64)
	for _, q := range s.queues {
		for i, id := range q.ordered() {
			positions[id] = uint64(i + 1)
		}
	}
	required := s.tracker.RequiredSeconds()

	result := make(map[peer.ID]NodeView, len(s.members))
	for id, m := range s.members {
		record := s.tracker.Record(id)
		view := NodeView{
			Id:                 id,
			ShardId:            m.shardId,
			State:              m.state,
			AccumulatedSeconds: record.AccumulatedSeconds,
			Progress:           record.Progress,
		}
		switch m.state {
		case Patience:
			if record.AccumulatedSeconds > required {
				s.throttledLog.Warn("Accumulated patience exceeds requirement", "node", id, "accumulated", record.AccumulatedSeconds, "required", required)
			} else {
				view.RemainingSeconds = required - record.AccumulatedSeconds
			}
		case Queue:
			position, ok := positions[id]
			if !ok {
				s.throttledLog.Warn("Queued node is missing from queue", "node", id)
				position = uint64(s.queues[m.shardId].len() + 1)
			}
			view.QueuePosition = position
			view.EstimatedBlocks = position
			view.RemainingSeconds = s.secondsFor(position)
			view.Progress = 1
		case Leader:
			view.IsSlotLeader = true
			view.Progress = 1
		}
		result[id] = view
	}
	return result
}

// secondsFor is the wall time of slots slots, rounded up to whole seconds.
func (s *Scheduler) secondsFor(slots uint64) uint64 {
	total := time.Duration(slots) * s.slotDuration
	return uint64((total + time.Second - 1) / time.Second)
}

func (s *Scheduler) sortedIds() []peer.ID {
	ids := make([]peer.ID, 0, len(s.members))
	for id := range s.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
