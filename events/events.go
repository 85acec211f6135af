package events

import (
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/vdf"
)

const (
	NodeStatusEventID      = eventbus.EventID("node-status")
	VdfStatusEventID       = eventbus.EventID("vdf-status")
	NewBlockEventID        = eventbus.EventID("new-block")
	ConsensusStatusEventID = eventbus.EventID("consensus-status")
	NewTxEventID           = eventbus.EventID("transaction-new")
)

const (
	NodeStarting         = "Starting"
	NodeConnected        = "Connected"
	NodeRelayUnreachable = "Relay Unreachable"
	NodeHalted           = "Halted"
	NodeStopped          = "Stopped"
)

type NodeStatusEvent struct {
	Status string
}

func (e *NodeStatusEvent) EventID() eventbus.EventID {
	return NodeStatusEventID
}

type VdfStatusEvent struct {
	State vdf.State
}

func (e *VdfStatusEvent) EventID() eventbus.EventID {
	return VdfStatusEventID
}

type NewBlockEvent struct {
	Block *types.Block
}

func (e *NewBlockEvent) EventID() eventbus.EventID {
	return NewBlockEventID
}

type NewTxEvent struct {
	Tx  *types.Transaction
	Own bool
}

func (e *NewTxEvent) EventID() eventbus.EventID {
	return NewTxEventID
}
