package protocol

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/patience-network/patience-go/log"
	"sync/atomic"
	"time"
)

// PeerView is what consensus needs to know about the network.
type PeerView interface {
	ConnectedPeerCount() uint32
	IsRelayConnected() bool
}

// PeerManager is the membership view fed by the transport layer. In standalone mode
// the relay is always considered reachable.
type PeerManager struct {
	relay          multiaddr.Multiaddr
	standalone     bool
	relayConnected int32
	peers          *peerSet
	maxPeers       int
	log            log.Logger
}

func NewPeerManager(relay multiaddr.Multiaddr, maxPeers int, standalone bool) *PeerManager {
	return &PeerManager{
		relay:      relay,
		standalone: standalone,
		peers:      newPeerSet(),
		maxPeers:   maxPeers,
		log:        log.New("component", "peers"),
	}
}

func (m *PeerManager) Relay() multiaddr.Multiaddr {
	return m.relay
}

func (m *PeerManager) SetRelayConnected(connected bool) {
	var v int32
	if connected {
		v = 1
	}
	if atomic.SwapInt32(&m.relayConnected, v) != v {
		m.log.Info("Relay connection changed", "relay", m.relay, "connected", connected)
	}
}

func (m *PeerManager) IsRelayConnected() bool {
	return m.standalone || atomic.LoadInt32(&m.relayConnected) == 1
}

func (m *PeerManager) ConnectedPeerCount() uint32 {
	return uint32(m.peers.Len())
}

// AddPeer registers a connected peer. It returns false when the peer is already
// known or the peer limit is reached.
func (m *PeerManager) AddPeer(id peer.ID, addr multiaddr.Multiaddr) bool {
	if m.maxPeers > 0 && m.peers.Len() >= m.maxPeers {
		m.log.Debug("Peer limit reached", "peer", id)
		return false
	}
	if err := m.peers.Register(&PeerInfo{Id: id, Addr: addr, ConnectedAt: time.Now()}); err != nil {
		m.log.Trace("Peer is not registered", "peer", id, "err", err)
		return false
	}
	return true
}

func (m *PeerManager) RemovePeer(id peer.ID) bool {
	return m.peers.Unregister(id) == nil
}

func (m *PeerManager) Peers() []*PeerInfo {
	return m.peers.Peers()
}

func (m *PeerManager) Close() {
	m.peers.Close()
	m.SetRelayConnected(false)
}
