package consensus

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/core/scheduler"
	"sort"
	"sync/atomic"
)

type snapshot struct {
	slot   uint64
	halted bool
	nodes  map[peer.ID]ConsensusStatus
}

// Reporter serves consensus statuses from an immutable snapshot that the engine
// replaces as a whole. Readers never block the engine.
type Reporter struct {
	value atomic.Value
}

func NewReporter() *Reporter {
	r := &Reporter{}
	r.value.Store(&snapshot{nodes: map[peer.ID]ConsensusStatus{}})
	return r
}

func (r *Reporter) load() *snapshot {
	return r.value.Load().(*snapshot)
}

func (r *Reporter) Publish(views map[peer.ID]scheduler.NodeView, slot uint64) {
	if r.load().halted {
		return
	}
	nodes := make(map[peer.ID]ConsensusStatus, len(views))
	for id, view := range views {
		nodes[id] = statusFromView(view, slot)
	}
	r.value.Store(&snapshot{slot: slot, nodes: nodes})
}

// Halt publishes an empty snapshot that stays in place: every node reports
// Connecting until the reporter is replaced.
func (r *Reporter) Halt() {
	r.value.Store(&snapshot{halted: true, nodes: map[peer.ID]ConsensusStatus{}})
}

func (r *Reporter) Halted() bool {
	return r.load().halted
}

// Status returns the last published status of id, Connecting when unknown.
func (r *Reporter) Status(id peer.ID) ConsensusStatus {
	if status, ok := r.load().nodes[id]; ok {
		return status
	}
	return ConnectingStatus{}
}

func (r *Reporter) Slot() uint64 {
	return r.load().slot
}

// Leaders returns the nodes reporting Leader in the current snapshot.
func (r *Reporter) Leaders() []peer.ID {
	var result []peer.ID
	for id, status := range r.load().nodes {
		if status.State() == scheduler.Leader {
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}
