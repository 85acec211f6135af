package config

import "time"

type Mempool struct {
	TxPoolSlots int
	TxLifetime  time.Duration
	// KnownTxsFilterSize sizes the bloom filter used to reject replayed txs.
	KnownTxsFilterSize uint
}

func GetDefaultMempoolConfig() *Mempool {
	return &Mempool{
		TxPoolSlots:        4096,
		TxLifetime:         time.Hour * 3,
		KnownTxsFilterSize: 100000,
	}
}
