package mempool

import (
	"context"
	"github.com/patience-network/patience-go/blockchain/types"
)

const batchSize = 1000

// AsyncTxPool accepts transactions without blocking the caller and adds them to the
// underlying pool in batches. Transactions offered while the queue is full are dropped.
type AsyncTxPool struct {
	txPool *TxPool
	queue  chan *types.Transaction
}

func NewAsyncTxPool(txPool *TxPool) *AsyncTxPool {
	return &AsyncTxPool{
		txPool: txPool,
		queue:  make(chan *types.Transaction, 10000),
	}
}

func (pool *AsyncTxPool) AddExternalTxs(txs ...*types.Transaction) int {
	accepted := 0
	for _, tx := range txs {
		select {
		case pool.queue <- tx:
			accepted++
		default:
		}
	}
	return accepted
}

func (pool *AsyncTxPool) TakeBatch(max int) ([]*types.Transaction, error) {
	return pool.txPool.TakeBatch(max)
}

func (pool *AsyncTxPool) PeekCount() int {
	return pool.txPool.PeekCount()
}

func (pool *AsyncTxPool) Requeue(txs []*types.Transaction) {
	pool.txPool.Requeue(txs)
}

// Run moves queued transactions into the pool until ctx is done.
func (pool *AsyncTxPool) Run(ctx context.Context) error {
	for {
		batch := make([]*types.Transaction, 1)
		select {
		case <-ctx.Done():
			return nil
		case batch[0] = <-pool.queue:
		}

	batchLoop:
		for i := 0; i < batchSize-1; i++ {
			select {
			case tx := <-pool.queue:
				batch = append(batch, tx)
			default:
				break batchLoop
			}
		}
		pool.txPool.AddTxs(batch...)
	}
}
