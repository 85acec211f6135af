package shards

import (
	"fmt"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewTable(t *testing.T) {
	_, err := NewTable(0, 10, 10)
	require.Equal(t, ErrNoShards, err)

	_, err = NewTable(4, 100, 99)
	require.Equal(t, ErrCapacityTooSmall, errors.Cause(err))

	table, err := NewTable(4, 100, 400)
	require.NoError(t, err)
	require.Equal(t, uint32(4), table.TotalShards())
	require.Equal(t, uint64(100), table.ShardTpsLimit())
	require.Equal(t, uint64(400), table.GlobalTpsCapacity())
}

func TestTable_AssignIsDeterministicAndStable(t *testing.T) {
	table, _ := NewTable(8, 100, 800)
	other, _ := NewTable(8, 100, 800)

	used := make(map[common.ShardId]bool)
	for i := 0; i < 200; i++ {
		id := peer.ID(fmt.Sprintf("node-%d", i))
		shard := table.Assign(id)
		require.True(t, uint32(shard) < 8)
		require.Equal(t, shard, table.Assign(id))
		require.Equal(t, shard, other.Assign(id))
		require.Equal(t, shard, ShardOf(id, 8))
		used[shard] = true
	}
	require.Len(t, used, 8, "200 nodes should cover all shards")
	require.Equal(t, 200, table.Size())

	total := 0
	for i := uint32(0); i < 8; i++ {
		total += len(table.Members(common.ShardId(i)))
	}
	require.Equal(t, 200, total, "every node is in exactly one shard")
}

func TestTable_VerifiedIsIrreversible(t *testing.T) {
	table, _ := NewTable(2, 1, 2)
	require.False(t, table.MarkVerified("a"), "unknown node")

	table.Assign("a")
	identity, ok := table.Identity("a")
	require.True(t, ok)
	require.False(t, identity.Verified)

	require.True(t, table.MarkVerified("a"))
	require.False(t, table.MarkVerified("a"))
	identity, _ = table.Identity("a")
	require.True(t, identity.Verified)
}

func TestTable_Remove(t *testing.T) {
	table, _ := NewTable(1, 1, 1)
	table.Assign("b")
	table.Assign("a")
	require.Equal(t, []peer.ID{"a", "b"}, table.Members(0))

	table.Remove("a")
	table.Remove("unknown")
	require.Equal(t, []peer.ID{"b"}, table.Members(0))
	_, ok := table.Identity("a")
	require.False(t, ok)
	require.Nil(t, table.Members(5))
}

func TestTable_RecommendedShards(t *testing.T) {
	table, _ := NewTable(1, 1, 1)
	for i := 0; i < 10; i++ {
		table.Assign(peer.ID(fmt.Sprintf("n%d", i)))
	}
	require.Equal(t, 4, table.RecommendedShards())
}
