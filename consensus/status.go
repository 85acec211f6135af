package consensus

import (
	"encoding/json"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/core/scheduler"
	"github.com/patience-network/patience-go/events"
)

// ConsensusStatus is one of ConnectingStatus, PatienceStatus, QueueStatus or
// LeaderStatus. Each variant carries only the fields that are meaningful for it.
type ConsensusStatus interface {
	State() scheduler.State
	View() StatusView
	isConsensusStatus()
}

// StatusView is the flat projection of a status exposed to observers.
type StatusView struct {
	State            string         `json:"state"`
	QueuePosition    uint64         `json:"queue_position"`
	EstimatedBlocks  uint64         `json:"estimated_blocks"`
	PatienceProgress float64        `json:"patience_progress"`
	RemainingSeconds uint64         `json:"remaining_seconds"`
	ShardId          common.ShardId `json:"shard_id"`
	IsSlotLeader     bool           `json:"is_slot_leader"`
}

type ConnectingStatus struct{}

type PatienceStatus struct {
	ShardId            common.ShardId
	AccumulatedSeconds uint64
	Progress           float64
	RemainingSeconds   uint64
}

type QueueStatus struct {
	ShardId          common.ShardId
	Position         uint64
	EstimatedBlocks  uint64
	RemainingSeconds uint64
}

type LeaderStatus struct {
	ShardId common.ShardId
	Slot    uint64
}

func (ConnectingStatus) State() scheduler.State { return scheduler.Connecting }
func (PatienceStatus) State() scheduler.State   { return scheduler.Patience }
func (QueueStatus) State() scheduler.State      { return scheduler.Queue }
func (LeaderStatus) State() scheduler.State     { return scheduler.Leader }

func (ConnectingStatus) isConsensusStatus() {}
func (PatienceStatus) isConsensusStatus()   {}
func (QueueStatus) isConsensusStatus()      {}
func (LeaderStatus) isConsensusStatus()     {}

func (s ConnectingStatus) View() StatusView {
	return StatusView{State: s.State().String()}
}

func (s PatienceStatus) View() StatusView {
	return StatusView{
		State:            s.State().String(),
		PatienceProgress: s.Progress,
		RemainingSeconds: s.RemainingSeconds,
		ShardId:          s.ShardId,
	}
}

func (s QueueStatus) View() StatusView {
	return StatusView{
		State:            s.State().String(),
		QueuePosition:    s.Position,
		EstimatedBlocks:  s.EstimatedBlocks,
		PatienceProgress: 1,
		RemainingSeconds: s.RemainingSeconds,
		ShardId:          s.ShardId,
	}
}

func (s LeaderStatus) View() StatusView {
	return StatusView{
		State:            s.State().String(),
		PatienceProgress: 1,
		ShardId:          s.ShardId,
		IsSlotLeader:     true,
	}
}

func (s ConnectingStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.View()) }
func (s PatienceStatus) MarshalJSON() ([]byte, error)   { return json.Marshal(s.View()) }
func (s QueueStatus) MarshalJSON() ([]byte, error)      { return json.Marshal(s.View()) }
func (s LeaderStatus) MarshalJSON() ([]byte, error)     { return json.Marshal(s.View()) }

func statusFromView(view scheduler.NodeView, slot uint64) ConsensusStatus {
	switch view.State {
	case scheduler.Patience:
		return PatienceStatus{
			ShardId:            view.ShardId,
			AccumulatedSeconds: view.AccumulatedSeconds,
			Progress:           clampProgress(view.Progress),
			RemainingSeconds:   view.RemainingSeconds,
		}
	case scheduler.Queue:
		return QueueStatus{
			ShardId:          view.ShardId,
			Position:         view.QueuePosition,
			EstimatedBlocks:  view.EstimatedBlocks,
			RemainingSeconds: view.RemainingSeconds,
		}
	case scheduler.Leader:
		return LeaderStatus{ShardId: view.ShardId, Slot: slot}
	default:
		return ConnectingStatus{}
	}
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

type StatusChangedEvent struct {
	NodeId peer.ID
	Status ConsensusStatus
}

func (e *StatusChangedEvent) EventID() eventbus.EventID {
	return events.ConsensusStatusEventID
}
