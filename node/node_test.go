package node

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/consensus"
	"github.com/patience-network/patience-go/core/scheduler"
	"github.com/patience-network/patience-go/events"
	"github.com/patience-network/patience-go/vdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func testConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.DataDir = ""
	cfg.Consensus.Standalone = true
	cfg.Consensus.SlotDuration = time.Second
	cfg.Consensus.TickInterval = 50 * time.Millisecond
	cfg.Consensus.RequiredPatienceSeconds = 2
	cfg.Vdf.Difficulty = 100
	cfg.Vdf.BatchSize = 10
	cfg.Sharding.TotalShards = 1
	cfg.Sharding.ShardTpsLimit = 100
	cfg.Sharding.GlobalTpsCapacity = 100
	return cfg
}

func TestNode_SelfInfo(t *testing.T) {
	node, err := NewNode(testConfig(), "0.3.1")
	require.NoError(t, err)
	defer node.Destroy()

	info := node.GetSelfNodeInfo()
	require.Equal(t, node.PeerId(), info.PeerId)
	require.Equal(t, uint32(1), info.TotalShards)
	require.Equal(t, uint64(100), info.ShardTpsLimit)
	require.Equal(t, uint64(100), info.GlobalTpsCapacity)
	require.Equal(t, "0.3.1", info.Version)
	require.Equal(t, 1, info.RecommendedShards)
	require.Equal(t, consensus.ConsensusStatus(consensus.ConnectingStatus{}), node.GetConsensusStatus(node.PeerId()))
	require.False(t, node.VdfState().IsActive)
}

func TestNode_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Sharding.GlobalTpsCapacity = 10
	_, err := NewNode(cfg, "0.3.1")
	require.Error(t, err)

	_, err = NewNode(testConfig(), "not a version")
	require.Error(t, err)
}

func TestNode_ProducesBlocksStandalone(t *testing.T) {
	node, err := NewNode(testConfig(), "0.3.1")
	require.NoError(t, err)
	defer node.Destroy()

	sub, err := node.EventBus().Listen(events.NewBlockEventID)
	require.NoError(t, err)

	hash, err := node.AddTx(&types.Transaction{From: "alice", To: "bob", Amount: decimal.New(5, 0), Fee: decimal.New(1, -1)})
	require.NoError(t, err)
	require.Len(t, node.PendingTxs(), 1)

	require.NoError(t, node.Start())
	require.Equal(t, consensus.ErrAlreadyRunning, node.Start())

	var block *types.Block
	select {
	case e := <-sub.Events():
		block = e.(*events.NewBlockEvent).Block
	case <-time.After(time.Second * 15):
		require.Fail(t, "no block produced")
	}
	require.Equal(t, uint64(1), block.Index)
	require.Equal(t, node.PeerId(), block.Author)
	require.Len(t, block.Transactions, 1)
	require.Equal(t, hash, block.Transactions[0].Hash())
	require.Empty(t, node.PendingTxs())
	require.Equal(t, events.NodeConnected, node.NodeStatus())
	require.True(t, node.Metrics().ProducedBlocks >= 1)

	require.NoError(t, node.Stop())
	require.NoError(t, node.Stop())
	require.False(t, node.VdfState().IsActive)
	require.Equal(t, scheduler.Connecting, node.GetConsensusStatus(node.PeerId()).State())

	// restart rejoins with a fresh patience session
	require.NoError(t, node.Start())
	require.Eventually(t, func() bool {
		return node.GetConsensusStatus(node.PeerId()).State() != scheduler.Connecting
	}, time.Second*10, time.Millisecond*20)
	require.NoError(t, node.Stop())
}

func TestNode_RestartAfterHaltReportsStatus(t *testing.T) {
	node, err := NewNode(testConfig(), "0.3.1")
	require.NoError(t, err)
	defer node.Destroy()

	notConnecting := func() bool {
		return node.GetConsensusStatus(node.PeerId()).State() != scheduler.Connecting
	}
	require.NoError(t, node.Start())
	require.Eventually(t, notConnecting, time.Second*10, time.Millisecond*20)

	node.mutex.Lock()
	halted := node.reporter
	node.mutex.Unlock()
	halted.Halt()
	require.Equal(t, consensus.ConsensusStatus(consensus.ConnectingStatus{}), node.GetConsensusStatus(node.PeerId()))
	require.NoError(t, node.Stop())

	require.NoError(t, node.Start())
	require.Eventually(t, notConnecting, time.Second*10, time.Millisecond*20)
	require.True(t, halted.Halted())
	require.NoError(t, node.Stop())
}

func TestNode_RemotePeers(t *testing.T) {
	node, err := NewNode(testConfig(), "0.3.1")
	require.NoError(t, err)
	defer node.Destroy()

	remote := peer.ID("remote")
	addr, err := multiaddr.NewMultiaddr("/ip4/10.0.0.1/tcp/40405")
	require.NoError(t, err)

	_, err = node.ObservePeer(node.PeerId(), addr)
	require.Error(t, err)

	shardId, err := node.ObservePeer(remote, addr)
	require.NoError(t, err)
	require.Equal(t, node.GetSelfNodeInfo().ShardId, shardId)
	require.Equal(t, uint32(1), node.Peers().ConnectedPeerCount())

	require.Equal(t, vdf.ErrInvalidProof, node.PeerVerified(remote, &vdf.Proof{Iterations: 100}))
	seed := [32]byte{1}
	proof := &vdf.Proof{Seed: seed, Output: vdf.Evaluate(seed, 100), Iterations: 100}
	require.NoError(t, node.PeerVerified(remote, proof))
	require.NoError(t, node.PeerVdf(remote, true))
	require.Error(t, node.PeerVdf(peer.ID("unknown"), true))

	node.ForgetPeer(remote)
	require.Equal(t, uint32(0), node.Peers().ConnectedPeerCount())
	require.Error(t, node.PeerVdf(remote, true))
}
