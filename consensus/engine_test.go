package consensus

import (
	"context"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/blockchain"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/core/mempool"
	"github.com/patience-network/patience-go/core/patience"
	"github.com/patience-network/patience-go/core/scheduler"
	"github.com/patience-network/patience-go/core/shards"
	"github.com/patience-network/patience-go/events"
	"github.com/patience-network/patience-go/protocol"
	"github.com/patience-network/patience-go/secstore"
	"github.com/patience-network/patience-go/stats/collector"
	"github.com/patience-network/patience-go/vdf"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	db "github.com/tendermint/tm-db"
	"testing"
	"time"
)

const testDifficulty = 10

type testEnv struct {
	engine *Engine
	chain  *blockchain.Blockchain
	vdf    *vdf.Engine
	peers  *protocol.PeerManager
	bus    eventbus.Bus
	stats  collector.StatsCollector
	self   peer.ID
	t0     time.Time
}

type fatalProducer struct{}

func (fatalProducer) Produce(ctx context.Context, shardId common.ShardId, slot uint64) (*types.Block, error) {
	return nil, errors.Wrap(blockchain.ParentHashIsInvalid, "tip mismatch")
}

func newTestEnv(t *testing.T, standalone bool, producer BlockProducer) *testEnv {
	key, err := secstore.GenerateKey()
	require.NoError(t, err)
	return newTestEnvWithKey(t, standalone, producer, key)
}

func newTestEnvWithKey(t *testing.T, standalone bool, producer BlockProducer, key []byte) *testEnv {
	t0 := time.Unix(1600000000, 0)
	cfg := config.GetDefaultConfig()
	cfg.Consensus.RequiredPatienceSeconds = 10
	cfg.Consensus.SlotDuration = 2 * time.Second
	cfg.Consensus.GenesisTime = t0.Unix() - 1
	cfg.Sharding.TotalShards = 2
	cfg.Sharding.GlobalTpsCapacity = 2000

	store := secstore.NewSecStore()
	require.NoError(t, store.AddKey(key))
	self := store.GetPeerId()

	table, err := shards.NewTable(cfg.Sharding.TotalShards, cfg.Sharding.ShardTpsLimit, cfg.Sharding.GlobalTpsCapacity)
	require.NoError(t, err)
	sched := scheduler.NewScheduler(table, patience.NewTracker(cfg.Consensus.RequiredPatienceSeconds), cfg.Consensus.SlotDuration)

	vdfEngine := vdf.NewEngine(common.Hash{0x1}, testDifficulty, testDifficulty, 5)
	var mono uint64
	vdfEngine.SetMonoClock(func() uint64 {
		mono++
		return mono
	})

	bus := eventbus.New()
	chain := blockchain.NewBlockchain(db.NewMemDB(), bus)
	if producer == nil {
		producer = blockchain.NewProducer(cfg.Consensus, chain, mempool.NewTxPool(cfg.Mempool), sched, vdfEngine, store, self)
	}
	peers := protocol.NewPeerManager(nil, 0, standalone)
	stats := collector.NewMetricsCollector(nil)
	engine := NewEngine(cfg, sched, vdfEngine, producer, peers, NewReporter(), bus, stats, self)
	engine.now = func() time.Time { return t0 }
	return &testEnv{engine: engine, chain: chain, vdf: vdfEngine, peers: peers, bus: bus, stats: stats, self: self, t0: t0}
}

// tick runs one engine tick i seconds after start with one proof computed since the
// previous tick.
func (env *testEnv) tick(t *testing.T, i int) {
	env.vdf.Compute(testDifficulty)
	require.NoError(t, env.engine.Tick(context.Background(), env.t0.Add(time.Duration(i)*time.Second)))
}

func TestEngine_PatienceQueueLeader(t *testing.T) {
	env := newTestEnv(t, true, nil)
	defer env.bus.Close()
	env.engine.begin(env.t0)
	require.Equal(t, ConnectingStatus{}, env.engine.GetConsensusStatus(env.self))

	for i := 1; i <= 9; i++ {
		env.tick(t, i)
		status, ok := env.engine.GetConsensusStatus(env.self).(PatienceStatus)
		require.True(t, ok, "tick %v", i)
		require.Equal(t, uint64(i), status.AccumulatedSeconds)
		require.Equal(t, uint64(10-i), status.RemainingSeconds)
	}
	require.True(t, env.engine.VdfState().IsActive)

	env.tick(t, 10)
	queued, ok := env.engine.GetConsensusStatus(env.self).(QueueStatus)
	require.True(t, ok)
	require.Equal(t, uint64(1), queued.Position)
	require.Equal(t, uint64(1), queued.EstimatedBlocks)
	require.Equal(t, uint64(2), queued.RemainingSeconds)

	env.tick(t, 11)
	leader, ok := env.engine.GetConsensusStatus(env.self).(LeaderStatus)
	require.True(t, ok)
	require.True(t, leader.View().IsSlotLeader)
	require.Equal(t, uint64(6), leader.Slot)
	require.Equal(t, uint64(1), env.chain.Height(leader.ShardId))
	require.Equal(t, uint64(0), env.chain.Height(1-leader.ShardId), "the other shard has no members")

	env.tick(t, 12)
	require.Equal(t, uint64(1), env.chain.Height(leader.ShardId), "same slot")
	env.tick(t, 13)
	require.Equal(t, uint64(2), env.chain.Height(leader.ShardId))

	stats := env.stats.Snapshot()
	require.Equal(t, int64(2), stats.ProducedBlocks)
	require.Equal(t, int64(2), stats.LedSlots)
	require.Equal(t, events.NodeConnected, env.engine.NodeStatus())
}

func TestEngine_PatienceFollowsWallClock(t *testing.T) {
	env := newTestEnv(t, true, nil)
	defer env.bus.Close()
	env.engine.begin(env.t0)

	for i := 1; i <= 10; i++ {
		env.vdf.Compute(testDifficulty)
		require.NoError(t, env.engine.Tick(context.Background(), env.t0.Add(time.Duration(i)*500*time.Millisecond)))
	}
	status, ok := env.engine.GetConsensusStatus(env.self).(PatienceStatus)
	require.True(t, ok)
	require.Equal(t, uint64(5), status.AccumulatedSeconds)
	require.Equal(t, uint64(5), status.RemainingSeconds)

	// a long pause is not credited as patience
	env.vdf.Compute(testDifficulty)
	require.NoError(t, env.engine.Tick(context.Background(), env.t0.Add(time.Minute)))
	require.Equal(t, uint64(7), env.engine.GetConsensusStatus(env.self).(PatienceStatus).AccumulatedSeconds)

	env.vdf.Compute(testDifficulty)
	require.NoError(t, env.engine.Tick(context.Background(), env.t0.Add(time.Minute+time.Second)))
	require.Equal(t, uint64(8), env.engine.GetConsensusStatus(env.self).(PatienceStatus).AccumulatedSeconds)
}

func TestEngine_MissedSlotsElectSameLeaders(t *testing.T) {
	key, err := secstore.GenerateKey()
	require.NoError(t, err)
	remotes := []peer.ID{"remote-1", "remote-2", "remote-3", "remote-4"}
	newEnv := func() *testEnv {
		env := newTestEnvWithKey(t, true, nil, key)
		env.engine.begin(env.t0)
		sched := env.engine.scheduler
		for _, id := range remotes {
			sched.Join(id)
			require.NoError(t, sched.MarkVerified(id))
			require.NoError(t, sched.SetVdfActive(id, true))
		}
		return env
	}
	punctual := newEnv()
	defer punctual.bus.Close()
	late := newEnv()
	defer late.bus.Close()

	for i := 1; i <= 10; i++ {
		punctual.tick(t, i)
		late.tick(t, i)
	}
	for _, id := range remotes {
		state := late.engine.GetConsensusStatus(id).State()
		require.True(t, state == scheduler.Queue || state == scheduler.Leader, "%v is %v", id, state)
	}

	compare := func() {
		require.Equal(t, punctual.engine.slot, late.engine.slot)
		for shardId := common.ShardId(0); shardId < 2; shardId++ {
			require.Equal(t, punctual.engine.scheduler.Leader(shardId), late.engine.scheduler.Leader(shardId), "shard %v", shardId)
			require.Equal(t, punctual.engine.scheduler.Commitment(shardId), late.engine.scheduler.Commitment(shardId), "shard %v", shardId)
		}
		require.Equal(t, punctual.engine.Reporter().Leaders(), late.engine.Reporter().Leaders())
	}

	for i := 11; i <= 16; i++ {
		punctual.tick(t, i)
	}
	late.tick(t, 16)
	compare()

	for i := 17; i <= 31; i++ {
		punctual.tick(t, i)
	}
	late.tick(t, 31)
	compare()
	require.NotEmpty(t, late.engine.Reporter().Leaders())
}

func TestEngine_VdfStallWithholdsCredit(t *testing.T) {
	env := newTestEnv(t, true, nil)
	defer env.bus.Close()
	env.engine.begin(env.t0)

	env.tick(t, 1)
	env.tick(t, 2)
	require.Equal(t, uint64(2), env.engine.GetConsensusStatus(env.self).(PatienceStatus).AccumulatedSeconds)

	// no new iterations
	require.NoError(t, env.engine.Tick(context.Background(), env.t0.Add(3*time.Second)))
	require.False(t, env.engine.VdfState().IsActive)
	require.Equal(t, uint64(2), env.engine.GetConsensusStatus(env.self).(PatienceStatus).AccumulatedSeconds)

	// clock rollback
	env.vdf.Compute(testDifficulty)
	require.NoError(t, env.engine.Tick(context.Background(), env.t0.Add(2*time.Second)))
	require.False(t, env.engine.VdfState().IsActive)
	require.Equal(t, uint64(2), env.engine.GetConsensusStatus(env.self).(PatienceStatus).AccumulatedSeconds)

	env.tick(t, 4)
	require.Equal(t, uint64(3), env.engine.GetConsensusStatus(env.self).(PatienceStatus).AccumulatedSeconds)
}

func TestEngine_RelayUnreachable(t *testing.T) {
	env := newTestEnv(t, false, nil)
	defer env.bus.Close()
	sub, err := env.bus.Listen(events.NodeStatusEventID)
	require.NoError(t, err)

	env.engine.begin(env.t0)
	for i := 1; i <= 12; i++ {
		env.tick(t, i)
		require.Equal(t, ConnectingStatus{}, env.engine.GetConsensusStatus(env.self))
	}
	require.Equal(t, events.NodeRelayUnreachable, env.engine.NodeStatus())

	env.peers.SetRelayConnected(true)
	env.tick(t, 13)
	require.Equal(t, events.NodeRelayUnreachable, env.engine.NodeStatus(), "no silent reconnect")
	require.Equal(t, ConnectingStatus{}, env.engine.GetConsensusStatus(env.self))

	var statuses []string
	for len(statuses) < 2 {
		select {
		case e := <-sub.Events():
			statuses = append(statuses, e.(*events.NodeStatusEvent).Status)
		case <-time.After(time.Second * 5):
			require.Fail(t, "node status events are not delivered")
		}
	}
	require.Equal(t, []string{events.NodeStarting, events.NodeRelayUnreachable}, statuses)
}

func TestEngine_HaltsOnLedgerInconsistency(t *testing.T) {
	env := newTestEnv(t, true, fatalProducer{})
	defer env.bus.Close()
	env.engine.begin(env.t0)

	for i := 1; i <= 10; i++ {
		env.tick(t, i)
	}
	require.Equal(t, scheduler.Queue, env.engine.GetConsensusStatus(env.self).State())

	env.vdf.Compute(testDifficulty)
	err := env.engine.Tick(context.Background(), env.t0.Add(11*time.Second))
	require.Equal(t, ErrHalted, err)
	require.Equal(t, events.NodeHalted, env.engine.NodeStatus())
	require.Equal(t, ConnectingStatus{}, env.engine.GetConsensusStatus(env.self))

	require.Equal(t, ErrHalted, env.engine.Tick(context.Background(), env.t0.Add(12*time.Second)))
}

func TestEngine_StartStop(t *testing.T) {
	env := newTestEnv(t, true, nil)
	defer env.bus.Close()
	env.engine.cfg.Consensus.TickInterval = 10 * time.Millisecond
	start := time.Now()
	env.engine.now = time.Now
	env.engine.cfg.Consensus.GenesisTime = start.Unix()

	require.NoError(t, env.engine.Start())
	require.Equal(t, ErrAlreadyRunning, env.engine.Start())

	require.Eventually(t, func() bool {
		return env.engine.NodeStatus() == events.NodeConnected
	}, time.Second*5, time.Millisecond*10)

	require.NoError(t, env.engine.Stop())
	require.NoError(t, env.engine.Stop())
	require.False(t, env.engine.VdfState().IsActive)
	require.Equal(t, events.NodeStopped, env.engine.NodeStatus())
	require.Equal(t, ConnectingStatus{}, env.engine.GetConsensusStatus(env.self))
}
