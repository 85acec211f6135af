package consensus

import (
	"context"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/blockchain"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/core/scheduler"
	"github.com/patience-network/patience-go/events"
	"github.com/patience-network/patience-go/log"
	"github.com/patience-network/patience-go/protocol"
	"github.com/patience-network/patience-go/stats/collector"
	"github.com/patience-network/patience-go/vdf"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

var (
	ErrHalted         = errors.New("consensus engine is halted")
	ErrAlreadyRunning = errors.New("consensus engine is already started")
)

type BlockProducer interface {
	Produce(ctx context.Context, shardId common.ShardId, slot uint64) (*types.Block, error)
}

// Engine is the single writer of consensus state. Every tick it folds VDF progress
// into the scheduler, rotates leaders on slot boundaries, produces the local node's
// blocks and publishes a new status snapshot.
type Engine struct {
	cfg            *config.Config
	scheduler      *scheduler.Scheduler
	vdf            *vdf.Engine
	producer       BlockProducer
	peers          protocol.PeerView
	reporter       *Reporter
	eventBus       eventbus.Bus
	statsCollector collector.StatsCollector
	self           peer.ID
	now            func() time.Time
	log            log.Logger

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	group     *errgroup.Group
	started   bool
	stopped   bool

	// owned by the ticking goroutine
	startTime  time.Time
	ticking    sync.Mutex
	credited   uint64
	slot       uint64
	hasSlot    bool
	relayLost  bool
	halted     bool
	verified   bool
	nodeStatus string
	lastStatus *StatusView
}

func NewEngine(cfg *config.Config, sched *scheduler.Scheduler, vdfEngine *vdf.Engine, producer BlockProducer,
	peers protocol.PeerView, reporter *Reporter, eventBus eventbus.Bus, statsCollector collector.StatsCollector,
	self peer.ID) *Engine {
	return &Engine{
		cfg:            cfg,
		scheduler:      sched,
		vdf:            vdfEngine,
		producer:       producer,
		peers:          peers,
		reporter:       reporter,
		eventBus:       eventBus,
		statsCollector: statsCollector,
		self:           self,
		now:            time.Now,
		log:            log.New("component", "consensus"),
	}
}

func (engine *Engine) Reporter() *Reporter {
	return engine.reporter
}

// Start launches the VDF worker and the tick loop. An engine runs once; after Stop
// or a halt a new engine must be created.
func (engine *Engine) Start() error {
	engine.lifecycle.Lock()
	defer engine.lifecycle.Unlock()
	if engine.started {
		return ErrAlreadyRunning
	}
	engine.started = true

	engine.begin(engine.now())

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	engine.cancel = cancel
	engine.group = group

	group.Go(func() error {
		return engine.vdf.Run(ctx)
	})
	group.Go(func() error {
		return engine.loop(ctx)
	})
	engine.log.Info("Start consensus protocol", "node", engine.self, "shard", engine.reporter.Status(engine.self).View().ShardId,
		"slotDuration", engine.cfg.Consensus.SlotDuration, "requiredPatience", engine.cfg.Consensus.RequiredPatienceSeconds)
	return nil
}

func (engine *Engine) begin(now time.Time) {
	engine.ticking.Lock()
	defer engine.ticking.Unlock()
	engine.startTime = now
	engine.emitNodeStatus(events.NodeStarting)
	shardId := engine.scheduler.Join(engine.self)
	engine.log.Debug("Joined shard", "shard", shardId)
	engine.publish()
}

// Stop cancels the workers and waits for them. Calling Stop more than once is safe.
func (engine *Engine) Stop() error {
	engine.lifecycle.Lock()
	defer engine.lifecycle.Unlock()
	if !engine.started || engine.stopped {
		return nil
	}
	engine.stopped = true
	engine.cancel()
	err := engine.group.Wait()
	engine.vdf.Stop()

	engine.ticking.Lock()
	defer engine.ticking.Unlock()
	engine.scheduler.Disconnect(engine.self)
	engine.publish()
	engine.publishVdf(engine.vdf.State())
	if !engine.halted {
		engine.emitNodeStatus(events.NodeStopped)
	}
	engine.log.Info("Consensus protocol stopped")
	if errors.Cause(err) == ErrHalted {
		return err
	}
	return nil
}

func (engine *Engine) loop(ctx context.Context) error {
	ticker := time.NewTicker(engine.cfg.Consensus.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := engine.Tick(ctx, engine.now()); err != nil {
				return err
			}
		}
	}
}

// Tick advances consensus to now. It only returns an error when the engine halts.
func (engine *Engine) Tick(ctx context.Context, now time.Time) error {
	engine.ticking.Lock()
	defer engine.ticking.Unlock()
	if engine.halted {
		return ErrHalted
	}

	engine.checkRelay()

	state := engine.vdf.Tick(now.Sub(engine.startTime))
	engine.publishVdf(state)
	collector.SetVdfRate(engine.statsCollector, state.IterationsPerSecond)
	if err := engine.scheduler.SetVdfActive(engine.self, state.IsActive && !engine.relayLost); err != nil {
		engine.log.Warn("Failed to update vdf activity", "err", err)
	}
	engine.checkVerified()

	for credit := engine.secondsToCredit(now); credit > 0; credit-- {
		engine.scheduler.Tick()
	}

	slot := common.SlotIndex(engine.cfg.Consensus.Genesis(), engine.cfg.Consensus.SlotDuration, now)
	if !engine.hasSlot || slot > engine.slot {
		engine.hasSlot = true
		engine.slot = slot
		if err := engine.advanceSlot(ctx, slot); err != nil {
			return err
		}
	}

	engine.publish()
	return nil
}

// secondsToCredit returns the whole wall-clock seconds since start that have not yet
// been credited as patience. At most one tick interval plus one second is credited at
// once: time the engine was not ticking is not patience.
func (engine *Engine) secondsToCredit(now time.Time) uint64 {
	elapsed := now.Sub(engine.startTime)
	if elapsed <= 0 {
		return 0
	}
	whole := uint64(elapsed / time.Second)
	if whole <= engine.credited {
		return 0
	}
	credit := whole - engine.credited
	engine.credited = whole
	limit := uint64((engine.cfg.Consensus.TickInterval+time.Second-1)/time.Second) + 1
	if credit > limit {
		engine.log.Debug("Ticks were late, withholding patience", "seconds", credit, "credited", limit)
		credit = limit
	}
	return credit
}

func (engine *Engine) checkRelay() {
	if engine.relayLost {
		return
	}
	if engine.peers.IsRelayConnected() {
		engine.emitNodeStatus(events.NodeConnected)
		return
	}
	engine.relayLost = true
	engine.log.Warn("Relay is unreachable, restart the node to reconnect")
	engine.scheduler.Disconnect(engine.self)
	engine.emitNodeStatus(events.NodeRelayUnreachable)
}

func (engine *Engine) checkVerified() {
	if engine.verified || engine.relayLost {
		return
	}
	if !engine.vdf.LastProof().Verify(engine.vdf.Difficulty()) {
		return
	}
	if err := engine.scheduler.MarkVerified(engine.self); err != nil {
		engine.log.Warn("Failed to mark node verified", "err", err)
		return
	}
	engine.verified = true
	engine.log.Info("Sequential proof verified", "node", engine.self)
}

func (engine *Engine) advanceSlot(ctx context.Context, slot uint64) error {
	for _, leader := range engine.scheduler.AdvanceSlot(slot) {
		collector.AddSlot(engine.statsCollector, leader.ShardId, leader.Empty())
		collector.SetQueueSize(engine.statsCollector, leader.ShardId, engine.scheduler.QueueLen(leader.ShardId))
		if leader.Empty() {
			engine.log.Trace("Empty slot", "shard", leader.ShardId, "slot", slot)
			continue
		}
		if leader.Leader != engine.self {
			continue
		}
		collector.AddLedSlot(engine.statsCollector)
		if err := engine.produce(ctx, leader.ShardId, slot); err != nil {
			return err
		}
	}
	return nil
}

func (engine *Engine) produce(ctx context.Context, shardId common.ShardId, slot uint64) error {
	block, err := engine.producer.Produce(ctx, shardId, slot)
	if err == nil {
		collector.AddProducedBlock(engine.statsCollector, len(block.Transactions))
		engine.log.Info("Block produced", "shard", shardId, "slot", slot, "index", block.Index, "hash", block.Hash.Hex())
		return nil
	}
	if errors.Cause(err) == blockchain.ParentHashIsInvalid {
		engine.halt(err)
		return ErrHalted
	}
	collector.AddProductionFailure(engine.statsCollector)
	engine.log.Warn("Slot skipped", "shard", shardId, "slot", slot, "err", err)
	return nil
}

func (engine *Engine) halt(err error) {
	engine.halted = true
	engine.log.Crit("Ledger is inconsistent, consensus halted", "err", err)
	engine.reporter.Halt()
	engine.emitNodeStatus(events.NodeHalted)
}

func (engine *Engine) publish() {
	engine.reporter.Publish(engine.scheduler.Views(), engine.slot)
	view := engine.reporter.Status(engine.self).View()
	if engine.lastStatus != nil && *engine.lastStatus == view {
		return
	}
	engine.lastStatus = &view
	if engine.eventBus != nil {
		engine.eventBus.Publish(&StatusChangedEvent{NodeId: engine.self, Status: engine.reporter.Status(engine.self)})
	}
}

func (engine *Engine) publishVdf(state vdf.State) {
	if engine.eventBus != nil {
		engine.eventBus.Publish(&events.VdfStatusEvent{State: state})
	}
}

func (engine *Engine) emitNodeStatus(status string) {
	if engine.nodeStatus == status {
		return
	}
	engine.nodeStatus = status
	engine.log.Info("Node status changed", "status", status)
	if engine.eventBus != nil {
		engine.eventBus.Publish(&events.NodeStatusEvent{Status: status})
	}
}

func (engine *Engine) NodeStatus() string {
	engine.ticking.Lock()
	defer engine.ticking.Unlock()
	return engine.nodeStatus
}

func (engine *Engine) VdfState() vdf.State {
	return engine.vdf.State()
}

func (engine *Engine) GetConsensusStatus(id peer.ID) ConsensusStatus {
	return engine.reporter.Status(id)
}
