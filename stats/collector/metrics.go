package collector

import (
	"context"
	"fmt"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/log"
	statsTypes "github.com/patience-network/patience-go/stats/types"
	"github.com/rcrowley/go-metrics"
	"sort"
	"strings"
	"sync"
	"time"
)

const queueSizePrefix = "queue_size."

type metricsCollector struct {
	registry           metrics.Registry
	slots              metrics.Counter
	emptySlots         metrics.Counter
	ledSlots           metrics.Counter
	producedBlocks     metrics.Meter
	productionFailures metrics.Counter
	includedTxs        metrics.Counter
	vdfRate            metrics.GaugeFloat64

	mutex      sync.Mutex
	queueSizes map[common.ShardId]metrics.Gauge
}

// NewMetricsCollector registers the consensus metrics in registry. A nil registry
// gets a private one.
func NewMetricsCollector(registry metrics.Registry) StatsCollector {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &metricsCollector{
		registry:           registry,
		slots:              metrics.GetOrRegisterCounter("slots.total", registry),
		emptySlots:         metrics.GetOrRegisterCounter("slots.empty", registry),
		ledSlots:           metrics.GetOrRegisterCounter("slots.led", registry),
		producedBlocks:     metrics.GetOrRegisterMeter("blocks.produced", registry),
		productionFailures: metrics.GetOrRegisterCounter("blocks.failed", registry),
		includedTxs:        metrics.GetOrRegisterCounter("txs.included", registry),
		vdfRate:            metrics.GetOrRegisterGaugeFloat64("vdf.iterations_per_second", registry),
		queueSizes:         make(map[common.ShardId]metrics.Gauge),
	}
}

func (c *metricsCollector) AddSlot(shardId common.ShardId, empty bool) {
	c.slots.Inc(1)
	if empty {
		c.emptySlots.Inc(1)
	}
}

func (c *metricsCollector) AddLedSlot() {
	c.ledSlots.Inc(1)
}

func (c *metricsCollector) AddProducedBlock(txs int) {
	c.producedBlocks.Mark(1)
	c.includedTxs.Inc(int64(txs))
}

func (c *metricsCollector) AddProductionFailure() {
	c.productionFailures.Inc(1)
}

func (c *metricsCollector) SetVdfRate(iterationsPerSecond float64) {
	c.vdfRate.Update(iterationsPerSecond)
}

func (c *metricsCollector) SetQueueSize(shardId common.ShardId, size int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	gauge, ok := c.queueSizes[shardId]
	if !ok {
		gauge = metrics.GetOrRegisterGauge(queueSizePrefix+shardId.String(), c.registry)
		c.queueSizes[shardId] = gauge
	}
	gauge.Update(int64(size))
}

func (c *metricsCollector) Snapshot() *statsTypes.SlotStats {
	stats := &statsTypes.SlotStats{
		Slots:                  c.slots.Count(),
		EmptySlots:             c.emptySlots.Count(),
		LedSlots:               c.ledSlots.Count(),
		ProducedBlocks:         c.producedBlocks.Count(),
		ProductionFailures:     c.productionFailures.Count(),
		IncludedTxs:            c.includedTxs.Count(),
		BlockRate:              c.producedBlocks.Rate1(),
		VdfIterationsPerSecond: c.vdfRate.Value(),
		QueueSizes:             make(map[common.ShardId]int64),
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for shardId, gauge := range c.queueSizes {
		stats.QueueSizes[shardId] = gauge.Value()
	}
	return stats
}

// LogMetrics writes every registered metric to logger each interval until ctx is done.
func LogMetrics(ctx context.Context, registry metrics.Registry, interval time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var items []string
			registry.Each(func(name string, i interface{}) {
				switch m := i.(type) {
				case metrics.Counter:
					items = append(items, fmt.Sprintf("%v=%v", name, m.Count()))
				case metrics.Gauge:
					items = append(items, fmt.Sprintf("%v=%v", name, m.Value()))
				case metrics.GaugeFloat64:
					items = append(items, fmt.Sprintf("%v=%.2f", name, m.Value()))
				case metrics.Meter:
					items = append(items, fmt.Sprintf("%v=%v(%.3f/s)", name, m.Count(), m.Rate1()))
				}
			})
			if len(items) > 0 {
				sort.Strings(items)
				logger.Info(strings.Join(items, ", "))
			}
		}
	}
}
