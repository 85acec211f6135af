package api

import (
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/node"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func newTestNode(t *testing.T) *node.Node {
	cfg := config.GetDefaultConfig()
	cfg.DataDir = ""
	cfg.Consensus.Standalone = true
	cfg.Consensus.SlotDuration = time.Second
	cfg.Consensus.TickInterval = 50 * time.Millisecond
	cfg.Consensus.RequiredPatienceSeconds = 1
	cfg.Vdf.Difficulty = 50
	cfg.Vdf.BatchSize = 10
	cfg.Sharding.TotalShards = 1
	n, err := node.NewNode(cfg, "1.0.0")
	require.NoError(t, err)
	return n
}

func TestNodeApi(t *testing.T) {
	n := newTestNode(t)
	defer n.Destroy()
	api := NewNodeApi(n)

	view, err := api.ConsensusStatus("")
	require.NoError(t, err)
	require.Equal(t, "Connecting", view.State)

	_, err = api.ConsensusStatus("not a peer id")
	require.Error(t, err)

	require.Equal(t, "1.0.0", api.SelfInfo().Version)
	require.Empty(t, api.Peers())
	require.Equal(t, uint32(0), api.PeersCount())
}

func TestBlockchainApi(t *testing.T) {
	n := newTestNode(t)
	defer n.Destroy()
	api := NewBlockchainApi(n)

	require.Nil(t, api.LastBlock(0))

	hash, err := api.SendTransaction(SendTxArgs{From: "alice", To: "bob", Amount: decimal.New(3, 0)})
	require.NoError(t, err)
	require.Equal(t, hash, api.PendingTransactions()[0])

	_, err = api.SendTransaction(SendTxArgs{To: "bob", Amount: decimal.New(3, 0)})
	require.Error(t, err)

	require.NoError(t, n.Start())
	defer n.Stop()
	require.Eventually(t, func() bool {
		return api.LastBlock(0) != nil
	}, time.Second*15, time.Millisecond*50)

	block := api.LastBlock(0)
	require.Equal(t, uint64(1), block.Index)
	require.Equal(t, hash, block.Transactions[0])
	require.Equal(t, block, api.Block(block.Hash))
	require.Equal(t, n.PeerId().Pretty(), block.Author)
}
