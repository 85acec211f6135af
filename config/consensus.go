package config

import (
	"github.com/shopspring/decimal"
	"time"
)

type ConsensusConf struct {
	SlotDuration            time.Duration
	TickInterval            time.Duration
	RequiredPatienceSeconds uint64
	// GenesisTime is the unix time slot 0 starts at.
	GenesisTime int64
	MaxBlockTxs int
	BlockReward decimal.Decimal
	// Standalone treats the relay as always reachable, for single node networks.
	Standalone bool
}

func (c *ConsensusConf) Genesis() time.Time {
	return time.Unix(c.GenesisTime, 0)
}

func GetDefaultConsensusConfig() *ConsensusConf {
	return &ConsensusConf{
		SlotDuration:            time.Second * 2,
		TickInterval:            time.Second,
		RequiredPatienceSeconds: 300,
		GenesisTime:             DefaultGenesisTime,
		MaxBlockTxs:             500,
		BlockReward:             decimal.New(2, 0),
	}
}

type VdfConf struct {
	Difficulty uint64
	// BatchSize is the number of sequential iterations the worker runs between
	// cancellation checks.
	BatchSize uint64
	// RateWindow is the number of per-tick rates averaged into IterationsPerSecond.
	RateWindow int
}

func GetDefaultVdfConfig() *VdfConf {
	return &VdfConf{
		Difficulty: 200000,
		BatchSize:  1024,
		RateWindow: 20,
	}
}

type ShardingConf struct {
	TotalShards       uint32
	ShardTpsLimit     uint64
	GlobalTpsCapacity uint64
}

func GetDefaultShardingConfig() *ShardingConf {
	return &ShardingConf{
		TotalShards:       4,
		ShardTpsLimit:     1000,
		GlobalTpsCapacity: 4000,
	}
}
