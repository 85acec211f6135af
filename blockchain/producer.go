package blockchain

import (
	"context"
	"encoding/binary"
	"github.com/RoaringBitmap/roaring"
	"github.com/google/tink/go/subtle/random"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/config"
	"github.com/patience-network/patience-go/log"
	"github.com/patience-network/patience-go/vdf"
	"github.com/pkg/errors"
	"math"
	"sync"
	"time"
)

var (
	ErrSlotAlreadyProduced = errors.New("slot is already produced")
	ErrProductionFailed    = errors.New("block production failed")
)

type Mempool interface {
	TakeBatch(max int) ([]*types.Transaction, error)
	PeekCount() int
}

// Requeuer is implemented by mempools that can take back drained transactions.
type Requeuer interface {
	Requeue(txs []*types.Transaction)
}

type RotationState interface {
	Commitment(shardId common.ShardId) common.Hash
}

type ProofSource interface {
	LastProof() *vdf.Proof
}

// Producer builds, signs and appends the block of a slot the local node leads. Each
// (shard, slot) is attempted at most once: failures skip the slot.
type Producer struct {
	cfg      *config.ConsensusConf
	ledger   Ledger
	mempool  Mempool
	rotation RotationState
	proofs   ProofSource
	signer   types.Signer
	author   peer.ID
	now      func() time.Time
	log      log.Logger

	mutex     sync.Mutex
	attempted map[common.ShardId]*roaring.Bitmap
}

func NewProducer(cfg *config.ConsensusConf, ledger Ledger, mempool Mempool, rotation RotationState, proofs ProofSource,
	signer types.Signer, author peer.ID) *Producer {
	return &Producer{
		cfg:       cfg,
		ledger:    ledger,
		mempool:   mempool,
		rotation:  rotation,
		proofs:    proofs,
		signer:    signer,
		author:    author,
		now:       time.Now,
		log:       log.New("component", "producer"),
		attempted: make(map[common.ShardId]*roaring.Bitmap),
	}
}

func (p *Producer) claim(shardId common.ShardId, slot uint64) error {
	if slot > math.MaxUint32 {
		return errors.Errorf("slot %v is out of range", slot)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	bitmap, ok := p.attempted[shardId]
	if !ok {
		bitmap = roaring.New()
		p.attempted[shardId] = bitmap
	}
	if !bitmap.CheckedAdd(uint32(slot)) {
		return errors.Wrapf(ErrSlotAlreadyProduced, "shard %v, slot %v", shardId, slot)
	}
	return nil
}

func newNonce() uint64 {
	return binary.BigEndian.Uint64(random.GetRandomBytes(8))
}

// Produce builds the block of slot for shardId and appends it to the ledger. A second
// call for the same (shard, slot) returns ErrSlotAlreadyProduced whatever the outcome
// of the first one. If ctx is done before the append, the block is discarded and the
// drained transactions go back to the mempool.
func (p *Producer) Produce(ctx context.Context, shardId common.ShardId, slot uint64) (*types.Block, error) {
	if err := p.claim(shardId, slot); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txs, err := p.mempool.TakeBatch(p.cfg.MaxBlockTxs)
	if err != nil {
		return nil, errors.Wrapf(ErrProductionFailed, "mempool: %v", err)
	}

	block := &types.Block{
		Index:        p.ledger.Height(shardId) + 1,
		Slot:         slot,
		Timestamp:    p.now().Unix(),
		Author:       p.author,
		Transactions: txs,
		PreviousHash: p.ledger.TipHash(shardId),
		VdfProof:     p.proofs.LastProof(),
		ShardId:      shardId,
		Nonce:        newNonce(),
		StateRoot:    p.rotation.Commitment(shardId),
		TotalReward:  blockReward(p.cfg, txs),
	}
	if err := block.Seal(p.signer); err != nil {
		p.requeue(txs)
		return nil, errors.Wrapf(ErrProductionFailed, "seal: %v", err)
	}

	if err := ctx.Err(); err != nil {
		p.requeue(txs)
		p.log.Debug("Block discarded", "shard", shardId, "slot", slot, "err", err)
		return nil, err
	}

	if err := p.ledger.Append(block); err != nil {
		p.requeue(txs)
		return nil, err
	}
	return block, nil
}

func (p *Producer) requeue(txs []*types.Transaction) {
	if len(txs) == 0 {
		return
	}
	if r, ok := p.mempool.(Requeuer); ok {
		r.Requeue(txs)
		return
	}
	p.log.Warn("Drained transactions are lost", "count", len(txs))
}
