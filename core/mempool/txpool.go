package mempool

import (
	"container/list"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/log"
	"github.com/pkg/errors"
	"github.com/willf/bloom"
	"sync"
	"time"
)

const knownTxsFalsePositiveRate = 0.001

var (
	ErrTxKnown   = errors.New("tx is already known")
	ErrPoolFull  = errors.New("tx pool is full")
	ErrInvalidTx = errors.New("tx is not valid")
)

type pendingTx struct {
	tx      *types.Transaction
	addedAt time.Time
}

// TxPool is a FIFO of pending transactions. Transactions seen once are remembered in
// a bloom filter, so a drained transaction cannot be re-added from outside; only
// Requeue puts it back.
type TxPool struct {
	totalTxLimit int
	lifetime     time.Duration

	mutex   sync.Mutex
	order   *list.List
	pending map[common.Hash]*list.Element
	known   *bloom.BloomFilter
	now     func() time.Time
	log     log.Logger
}

func NewTxPool(cfg *config.Mempool) *TxPool {
	filterSize := cfg.KnownTxsFilterSize
	if filterSize == 0 {
		filterSize = 1
	}
	return &TxPool{
		totalTxLimit: cfg.TxPoolSlots,
		lifetime:     cfg.TxLifetime,
		order:        list.New(),
		pending:      make(map[common.Hash]*list.Element),
		known:        bloom.NewWithEstimates(filterSize, knownTxsFalsePositiveRate),
		now:          time.Now,
		log:          log.New("component", "mempool"),
	}
}

func validateTx(tx *types.Transaction) error {
	if tx == nil {
		return errors.Wrap(ErrInvalidTx, "empty tx")
	}
	if tx.Amount.IsNegative() || tx.Fee.IsNegative() {
		return errors.Wrap(ErrInvalidTx, "negative amount or fee")
	}
	if tx.From == "" {
		return errors.Wrap(ErrInvalidTx, "sender is empty")
	}
	return nil
}

func (txpool *TxPool) checkTotalTxLimit() error {
	if txpool.totalTxLimit > 0 && txpool.order.Len() >= txpool.totalTxLimit {
		return ErrPoolFull
	}
	return nil
}

func (txpool *TxPool) Add(tx *types.Transaction) error {
	if err := validateTx(tx); err != nil {
		return err
	}
	hash := tx.Hash()

	txpool.mutex.Lock()
	defer txpool.mutex.Unlock()

	if _, ok := txpool.pending[hash]; ok || txpool.known.Test(hash.Bytes()) {
		return ErrTxKnown
	}
	if err := txpool.checkTotalTxLimit(); err != nil {
		return err
	}
	txpool.known.Add(hash.Bytes())
	txpool.pending[hash] = txpool.order.PushBack(&pendingTx{tx: tx, addedAt: txpool.now()})
	return nil
}

func (txpool *TxPool) AddTxs(txs ...*types.Transaction) {
	for _, tx := range txs {
		if err := txpool.Add(tx); err != nil {
			txpool.log.Debug("Tx is rejected", "hash", tx.Hash().Hex(), "err", err)
		}
	}
}

// TakeBatch drains up to max oldest transactions. Expired transactions are dropped.
func (txpool *TxPool) TakeBatch(max int) ([]*types.Transaction, error) {
	if max < 0 {
		return nil, errors.Errorf("invalid batch size %v", max)
	}
	txpool.mutex.Lock()
	defer txpool.mutex.Unlock()

	now := txpool.now()
	result := make([]*types.Transaction, 0, max)
	for len(result) < max && txpool.order.Len() > 0 {
		front := txpool.order.Front()
		p := txpool.order.Remove(front).(*pendingTx)
		delete(txpool.pending, p.tx.Hash())
		if txpool.lifetime > 0 && now.Sub(p.addedAt) > txpool.lifetime {
			txpool.log.Trace("Tx expired", "hash", p.tx.Hash().Hex())
			continue
		}
		result = append(result, p.tx)
	}
	return result, nil
}

// Requeue returns previously taken transactions to the head of the pool, keeping
// their relative order.
func (txpool *TxPool) Requeue(txs []*types.Transaction) {
	txpool.mutex.Lock()
	defer txpool.mutex.Unlock()
	now := txpool.now()
	for i := len(txs) - 1; i >= 0; i-- {
		hash := txs[i].Hash()
		if _, ok := txpool.pending[hash]; ok {
			continue
		}
		txpool.pending[hash] = txpool.order.PushFront(&pendingTx{tx: txs[i], addedAt: now})
	}
}

func (txpool *TxPool) PeekCount() int {
	txpool.mutex.Lock()
	defer txpool.mutex.Unlock()
	return txpool.order.Len()
}

func (txpool *TxPool) GetPendingTransaction() []*types.Transaction {
	txpool.mutex.Lock()
	defer txpool.mutex.Unlock()
	result := make([]*types.Transaction, 0, txpool.order.Len())
	for e := txpool.order.Front(); e != nil; e = e.Next() {
		result = append(result, e.Value.(*pendingTx).tx)
	}
	return result
}
