package api

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/consensus"
	"github.com/patience-network/patience-go/node"
	statsTypes "github.com/patience-network/patience-go/stats/types"
	"github.com/patience-network/patience-go/vdf"
)

// NodeApi exposes the consensus state a UI polls
type NodeApi struct {
	node *node.Node
}

// NewNodeApi creates a new NodeApi instance
func NewNodeApi(node *node.Node) *NodeApi {
	return &NodeApi{node}
}

// ConsensusStatus returns the flat status of nodeId, the local node when nodeId is empty.
func (api *NodeApi) ConsensusStatus(nodeId string) (consensus.StatusView, error) {
	id := api.node.PeerId()
	if nodeId != "" {
		var err error
		if id, err = peer.Decode(nodeId); err != nil {
			return consensus.StatusView{}, err
		}
	}
	return api.node.GetConsensusStatus(id).View(), nil
}

func (api *NodeApi) SelfInfo() node.NodeInfo {
	return api.node.GetSelfNodeInfo()
}

func (api *NodeApi) Status() string {
	return api.node.NodeStatus()
}

func (api *NodeApi) VdfState() vdf.State {
	return api.node.VdfState()
}

func (api *NodeApi) Metrics() *statsTypes.SlotStats {
	return api.node.Metrics()
}

type Peer struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"addr"`
}

func (api *NodeApi) PeersCount() uint32 {
	return api.node.Peers().ConnectedPeerCount()
}

func (api *NodeApi) Peers() []Peer {
	peers := make([]Peer, 0)
	for _, p := range api.node.Peers().Peers() {
		var addr string
		if p.Addr != nil {
			addr = p.Addr.String()
		}
		peers = append(peers, Peer{
			ID:         p.Id.Pretty(),
			RemoteAddr: addr,
		})
	}
	return peers
}
