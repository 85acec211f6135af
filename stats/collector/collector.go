package collector

import (
	"github.com/patience-network/patience-go/common"
	statsTypes "github.com/patience-network/patience-go/stats/types"
)

type StatsCollector interface {
	AddSlot(shardId common.ShardId, empty bool)
	AddLedSlot()
	AddProducedBlock(txs int)
	AddProductionFailure()
	SetVdfRate(iterationsPerSecond float64)
	SetQueueSize(shardId common.ShardId, size int)
	Snapshot() *statsTypes.SlotStats
}

type collectorStub struct {
}

func NewStatsCollector() StatsCollector {
	return &collectorStub{}
}

func (c *collectorStub) AddSlot(shardId common.ShardId, empty bool) {
	// do nothing
}

func AddSlot(c StatsCollector, shardId common.ShardId, empty bool) {
	if c == nil {
		return
	}
	c.AddSlot(shardId, empty)
}

func (c *collectorStub) AddLedSlot() {
	// do nothing
}

func AddLedSlot(c StatsCollector) {
	if c == nil {
		return
	}
	c.AddLedSlot()
}

func (c *collectorStub) AddProducedBlock(txs int) {
	// do nothing
}

func AddProducedBlock(c StatsCollector, txs int) {
	if c == nil {
		return
	}
	c.AddProducedBlock(txs)
}

func (c *collectorStub) AddProductionFailure() {
	// do nothing
}

func AddProductionFailure(c StatsCollector) {
	if c == nil {
		return
	}
	c.AddProductionFailure()
}

func (c *collectorStub) SetVdfRate(iterationsPerSecond float64) {
	// do nothing
}

func SetVdfRate(c StatsCollector, iterationsPerSecond float64) {
	if c == nil {
		return
	}
	c.SetVdfRate(iterationsPerSecond)
}

func (c *collectorStub) SetQueueSize(shardId common.ShardId, size int) {
	// do nothing
}

func SetQueueSize(c StatsCollector, shardId common.ShardId, size int) {
	if c == nil {
		return
	}
	c.SetQueueSize(shardId, size)
}

func (c *collectorStub) Snapshot() *statsTypes.SlotStats {
	return &statsTypes.SlotStats{}
}
