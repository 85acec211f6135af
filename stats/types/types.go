package types

import "github.com/patience-network/patience-go/common"

// SlotStats is a point-in-time copy of the consensus counters.
type SlotStats struct {
	Slots                  int64                    `json:"slots"`
	EmptySlots             int64                    `json:"empty_slots"`
	LedSlots               int64                    `json:"led_slots"`
	ProducedBlocks         int64                    `json:"produced_blocks"`
	ProductionFailures     int64                    `json:"production_failures"`
	IncludedTxs            int64                    `json:"included_txs"`
	BlockRate              float64                  `json:"block_rate"`
	VdfIterationsPerSecond float64                  `json:"vdf_iterations_per_second"`
	QueueSizes             map[common.ShardId]int64 `json:"queue_sizes"`
}
