package protocol

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"sort"
	"sync"
	"time"
)

var (
	errClosed            = errors.New("peer set is closed")
	errAlreadyRegistered = errors.New("peer is already registered")
	errNotRegistered     = errors.New("peer is not registered")
)

type PeerInfo struct {
	Id          peer.ID             `json:"id"`
	Addr        multiaddr.Multiaddr `json:"-"`
	ConnectedAt time.Time           `json:"connected_at"`
}

type peerSet struct {
	peers  map[peer.ID]*PeerInfo
	lock   sync.RWMutex
	closed bool
}

// newPeerSet creates a new peer set to track the active participants.
func newPeerSet() *peerSet {
	return &peerSet{
		peers: make(map[peer.ID]*PeerInfo),
	}
}

// Register injects a new peer into the working set, or returns an error if the
// peer is already known.
func (ps *peerSet) Register(p *PeerInfo) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()

	if ps.closed {
		return errClosed
	}
	if _, ok := ps.peers[p.Id]; ok {
		return errAlreadyRegistered
	}
	ps.peers[p.Id] = p

	return nil
}

// Unregister removes a remote peer from the active set.
func (ps *peerSet) Unregister(id peer.ID) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()

	_, ok := ps.peers[id]
	if !ok {
		return errNotRegistered
	}
	delete(ps.peers, id)

	return nil
}

// Peer retrieves the registered peer with the given id.
func (ps *peerSet) Peer(id peer.ID) *PeerInfo {
	ps.lock.RLock()
	defer ps.lock.RUnlock()

	return ps.peers[id]
}

// Len returns if the current number of peers in the set.
func (ps *peerSet) Len() int {
	ps.lock.RLock()
	defer ps.lock.RUnlock()

	return len(ps.peers)
}

func (ps *peerSet) Peers() []*PeerInfo {
	ps.lock.RLock()
	defer ps.lock.RUnlock()
	list := make([]*PeerInfo, 0, len(ps.peers))
	for _, p := range ps.peers {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Id < list[j].Id
	})
	return list
}

// Close drops all peers. No new peers can be registered after Close has returned.
func (ps *peerSet) Close() {
	ps.lock.Lock()
	defer ps.lock.Unlock()

	ps.peers = make(map[peer.ID]*PeerInfo)
	ps.closed = true
}
