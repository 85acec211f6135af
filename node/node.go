package node

import (
	"context"
	"github.com/coreos/go-semver/semver"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/patience-network/patience-go/blockchain"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/consensus"
	"github.com/patience-network/patience-go/core/mempool"
	"github.com/patience-network/patience-go/core/patience"
	"github.com/patience-network/patience-go/core/scheduler"
	"github.com/patience-network/patience-go/core/shards"
	"github.com/patience-network/patience-go/crypto"
	"github.com/patience-network/patience-go/events"
	"github.com/patience-network/patience-go/log"
	"github.com/patience-network/patience-go/protocol"
	"github.com/patience-network/patience-go/secstore"
	"github.com/patience-network/patience-go/stats/collector"
	statsTypes "github.com/patience-network/patience-go/stats/types"
	"github.com/patience-network/patience-go/vdf"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

const metricsLogInterval = time.Minute

type Node struct {
	config         *config.Config
	version        *semver.Version
	db             dbm.DB
	blockchain     *blockchain.Blockchain
	secStore       *secstore.SecStore
	table          *shards.Table
	scheduler      *scheduler.Scheduler
	txpool         *mempool.TxPool
	asyncPool      *mempool.AsyncTxPool
	peers          *protocol.PeerManager
	eventBus       eventbus.Bus
	registry       metrics.Registry
	statsCollector collector.StatsCollector
	log            log.Logger

	mutex     sync.Mutex
	reporter  *consensus.Reporter
	vdf       *vdf.Engine
	engine    *consensus.Engine
	cancel    context.CancelFunc
	workers   *errgroup.Group
	running   bool
	destroyed bool
}

type NodeInfo struct {
	PeerId            peer.ID        `json:"peerId"`
	ShardId           common.ShardId `json:"shardId"`
	TotalShards       uint32         `json:"totalShards"`
	ShardTpsLimit     uint64         `json:"shardTpsLimit"`
	GlobalTpsCapacity uint64         `json:"globalTpsCapacity"`
	Version           string         `json:"version"`
	RecommendedShards int            `json:"recommendedShards"`
}

func NewNode(cfg *config.Config, appVersion string) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var db dbm.DB
	if cfg.DataDir == "" {
		db = dbm.NewMemDB()
	} else {
		var err error
		db, err = OpenDatabase(cfg.DataDir, "ledger", 16, 16)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open ledger")
		}
	}
	key, err := loadKey(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	secStore := secstore.NewSecStore()
	if err := secStore.AddKey(key); err != nil {
		db.Close()
		return nil, err
	}
	return NewNodeWithInjections(cfg, appVersion, eventbus.New(), db, secStore)
}

func loadKey(cfg *config.Config) ([]byte, error) {
	if cfg.DataDir == "" {
		return secstore.GenerateKey()
	}
	return secstore.LoadOrCreateKey(cfg.KeyFile())
}

func NewNodeWithInjections(cfg *config.Config, appVersion string, bus eventbus.Bus, db dbm.DB, secStore *secstore.SecStore) (*Node, error) {
	version, err := semver.NewVersion(appVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid node version %v", appVersion)
	}
	table, err := shards.NewTable(cfg.Sharding.TotalShards, cfg.Sharding.ShardTpsLimit, cfg.Sharding.GlobalTpsCapacity)
	if err != nil {
		return nil, err
	}
	var relay multiaddr.Multiaddr
	if cfg.P2P.RelayAddr != "" {
		if relay, err = cfg.P2P.Relay(); err != nil {
			return nil, err
		}
	}
	chain := blockchain.NewBlockchain(db, bus)
	if err := chain.InitializeChain(cfg.Sharding.TotalShards); err != nil {
		return nil, err
	}
	txpool := mempool.NewTxPool(cfg.Mempool)
	registry := metrics.NewRegistry()
	return &Node{
		config:         cfg,
		version:        version,
		db:             db,
		blockchain:     chain,
		secStore:       secStore,
		table:          table,
		scheduler:      scheduler.NewScheduler(table, patience.NewTracker(cfg.Consensus.RequiredPatienceSeconds), cfg.Consensus.SlotDuration),
		txpool:         txpool,
		asyncPool:      mempool.NewAsyncTxPool(txpool),
		peers:          protocol.NewPeerManager(relay, cfg.P2P.MaxPeers, cfg.Consensus.Standalone),
		eventBus:       bus,
		registry:       registry,
		statsCollector: collector.NewMetricsCollector(registry),
		log:            log.New("component", "node"),
	}, nil
}

// Start runs consensus with a fresh VDF engine and status reporter. A stopped node can
// be started again, which is the only way to rejoin after the relay was lost or the
// ledger halted consensus.
func (node *Node) Start() error {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	if node.destroyed {
		return errors.New("node is destroyed")
	}
	if node.running {
		return consensus.ErrAlreadyRunning
	}
	self := node.secStore.GetPeerId()
	node.reporter = consensus.NewReporter()
	node.vdf = vdf.NewEngine(crypto.Hash([]byte(self)), node.config.Vdf.Difficulty, node.config.Vdf.BatchSize, node.config.Vdf.RateWindow)
	producer := blockchain.NewProducer(node.config.Consensus, node.blockchain, node.asyncPool, node.scheduler, node.vdf, node.secStore, self)
	node.engine = consensus.NewEngine(node.config, node.scheduler, node.vdf, producer, node.peers, node.reporter,
		node.eventBus, node.statsCollector, self)

	ctx, cancel := context.WithCancel(context.Background())
	workers, ctx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		return node.asyncPool.Run(ctx)
	})
	workers.Go(func() error {
		collector.LogMetrics(ctx, node.registry, metricsLogInterval, node.log)
		return nil
	})
	if err := node.engine.Start(); err != nil {
		cancel()
		workers.Wait()
		return err
	}
	node.cancel = cancel
	node.workers = workers
	node.running = true
	node.log.Info("Node started", "peerId", self, "version", node.version, "shards", node.table.TotalShards())
	return nil
}

// Stop halts consensus and the background workers. It is a no-op on a stopped node.
func (node *Node) Stop() error {
	node.mutex.Lock()
	defer node.mutex.Unlock()
	if !node.running {
		return nil
	}
	node.running = false
	err := node.engine.Stop()
	node.cancel()
	node.workers.Wait()
	node.log.Info("Node stopped")
	return err
}

// Destroy stops the node and releases the ledger and the node key.
func (node *Node) Destroy() error {
	err := node.Stop()
	node.mutex.Lock()
	defer node.mutex.Unlock()
	if node.destroyed {
		return err
	}
	node.destroyed = true
	node.peers.Close()
	node.secStore.Destroy()
	if closeErr := node.blockchain.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	node.eventBus.Close()
	return err
}

func (node *Node) EventBus() eventbus.Bus {
	return node.eventBus
}

func (node *Node) Blockchain() *blockchain.Blockchain {
	return node.blockchain
}

func (node *Node) Peers() *protocol.PeerManager {
	return node.peers
}

func (node *Node) PeerId() peer.ID {
	return node.secStore.GetPeerId()
}

// GetConsensusStatus reports Connecting for every node before the first start.
func (node *Node) GetConsensusStatus(id peer.ID) consensus.ConsensusStatus {
	node.mutex.Lock()
	reporter := node.reporter
	node.mutex.Unlock()
	if reporter == nil {
		return consensus.ConnectingStatus{}
	}
	return reporter.Status(id)
}

func (node *Node) GetSelfNodeInfo() NodeInfo {
	self := node.secStore.GetPeerId()
	shardId := shards.ShardOf(self, node.table.TotalShards())
	if identity, ok := node.table.Identity(self); ok {
		shardId = identity.ShardId
	}
	return NodeInfo{
		PeerId:            self,
		ShardId:           shardId,
		TotalShards:       node.table.TotalShards(),
		ShardTpsLimit:     node.table.ShardTpsLimit(),
		GlobalTpsCapacity: node.table.GlobalTpsCapacity(),
		Version:           node.version.String(),
		RecommendedShards: node.table.RecommendedShards(),
	}
}

// NodeStatus is the last node-status value, empty before the first start.
func (node *Node) NodeStatus() string {
	node.mutex.Lock()
	engine := node.engine
	node.mutex.Unlock()
	if engine == nil {
		return ""
	}
	return engine.NodeStatus()
}

func (node *Node) VdfState() vdf.State {
	node.mutex.Lock()
	engine := node.vdf
	node.mutex.Unlock()
	if engine == nil {
		return vdf.State{Difficulty: node.config.Vdf.Difficulty}
	}
	return engine.State()
}

func (node *Node) Metrics() *statsTypes.SlotStats {
	return node.statsCollector.Snapshot()
}

// ObservePeer registers a remote node reported by the gossip layer and places it in
// its shard.
func (node *Node) ObservePeer(id peer.ID, addr multiaddr.Multiaddr) (common.ShardId, error) {
	if id == node.secStore.GetPeerId() {
		return 0, errors.New("cannot observe self")
	}
	if !node.peers.AddPeer(id, addr) {
		return 0, errors.Errorf("peer %v is rejected", id)
	}
	return node.scheduler.Join(id), nil
}

func (node *Node) ForgetPeer(id peer.ID) {
	node.peers.RemovePeer(id)
	node.scheduler.Leave(id)
}

func (node *Node) PeerVerified(id peer.ID, proof *vdf.Proof) error {
	if !proof.Verify(node.config.Vdf.Difficulty) {
		return vdf.ErrInvalidProof
	}
	return node.scheduler.MarkVerified(id)
}

func (node *Node) PeerVdf(id peer.ID, active bool) error {
	return node.scheduler.SetVdfActive(id, active)
}

// AddTx adds a locally submitted transaction.
func (node *Node) AddTx(tx *types.Transaction) (common.Hash, error) {
	if err := node.txpool.Add(tx); err != nil {
		return common.Hash{}, err
	}
	node.eventBus.Publish(&events.NewTxEvent{Tx: tx, Own: true})
	return tx.Hash(), nil
}

// AddExternalTxs queues transactions relayed by peers; it returns how many were accepted
// into the queue.
func (node *Node) AddExternalTxs(txs ...*types.Transaction) int {
	return node.asyncPool.AddExternalTxs(txs...)
}

func (node *Node) PendingTxs() []*types.Transaction {
	return node.txpool.GetPendingTransaction()
}

func OpenDatabase(datadir string, name string, cache int, handles int) (dbm.DB, error) {
	return dbm.NewGoLevelDBWithOpts(name, datadir, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
}
