package blockchain

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/common/eventbus"
	"github.com/patience-network/patience-go/database"
	"github.com/patience-network/patience-go/events"
	"github.com/patience-network/patience-go/log"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"
	"math"
	"sync"
)

var (
	ParentHashIsInvalid = errors.New("parentHash is invalid")
	BlockInsertionErr   = errors.New("can't insert block")
	ErrInvalidIndex     = errors.New("block index is invalid")
	ErrSlotTaken        = errors.New("shard already has a block for the slot")
)

// Ledger is the append-only block store the producer writes to. Every shard is an
// independent chain: indexes start at 1 and grow by one per block of that shard.
type Ledger interface {
	Append(block *types.Block) error
	TipHash(shardId common.ShardId) common.Hash
	Height(shardId common.ShardId) uint64
}

type head struct {
	height uint64
	hash   common.Hash
	slots  *roaring.Bitmap
}

type Blockchain struct {
	repo  *database.Repo
	bus   eventbus.Bus
	log   log.Logger
	mutex sync.RWMutex
	heads map[common.ShardId]*head
}

func NewBlockchain(db dbm.DB, bus eventbus.Bus) *Blockchain {
	return &Blockchain{
		repo:  database.NewRepo(db),
		bus:   bus,
		log:   log.New("component", "chain"),
		heads: make(map[common.ShardId]*head),
	}
}

// InitializeChain loads the persisted heads of the given shards.
func (chain *Blockchain) InitializeChain(totalShards uint32) error {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	for i := uint32(0); i < totalShards; i++ {
		shardId := common.ShardId(i)
		if _, err := chain.loadHead(shardId); err != nil {
			return err
		}
	}
	return nil
}

func (chain *Blockchain) loadHead(shardId common.ShardId) (*head, error) {
	if h, ok := chain.heads[shardId]; ok {
		return h, nil
	}
	sdb := chain.repo.Shard(shardId)
	height, hash, ok, err := sdb.ReadHead()
	if err != nil {
		return nil, errors.Wrapf(err, "shard %v: failed to read head", shardId)
	}
	slots, err := sdb.ReadProducedSlots()
	if err != nil {
		return nil, err
	}
	h := &head{slots: slots}
	if ok {
		if !chain.repo.HasBlock(hash) {
			return nil, errors.Errorf("shard %v: head block %v is missing", shardId, hash.Hex())
		}
		h.height, h.hash = height, hash
		chain.log.Info("Shard head loaded", "shard", shardId, "height", height, "hash", hash.Hex())
	}
	chain.heads[shardId] = h
	return h, nil
}

func (chain *Blockchain) TipHash(shardId common.ShardId) common.Hash {
	chain.mutex.RLock()
	h, ok := chain.heads[shardId]
	chain.mutex.RUnlock()
	if ok {
		return h.hash
	}
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	h, err := chain.loadHead(shardId)
	if err != nil {
		chain.log.Error("Failed to load head", "shard", shardId, "err", err)
		return common.Hash{}
	}
	return h.hash
}

func (chain *Blockchain) Height(shardId common.ShardId) uint64 {
	chain.mutex.RLock()
	h, ok := chain.heads[shardId]
	chain.mutex.RUnlock()
	if ok {
		return h.height
	}
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	h, err := chain.loadHead(shardId)
	if err != nil {
		chain.log.Error("Failed to load head", "shard", shardId, "err", err)
		return 0
	}
	return h.height
}

// Append validates block against the shard head and persists it. The head record is
// written last, so a failed append leaves the shard at its previous head.
func (chain *Blockchain) Append(block *types.Block) error {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()

	h, err := chain.loadHead(block.ShardId)
	if err != nil {
		return errors.Wrap(BlockInsertionErr, err.Error())
	}
	if err := chain.validateBlock(block, h); err != nil {
		return err
	}

	sdb := chain.repo.Shard(block.ShardId)
	if err := chain.repo.WriteBlock(block); err != nil {
		return errors.Wrap(BlockInsertionErr, err.Error())
	}
	if err := sdb.WriteCanonicalHash(block.Index, block.Hash); err != nil {
		return errors.Wrap(BlockInsertionErr, err.Error())
	}
	slots := h.slots.Clone()
	slots.Add(uint32(block.Slot))
	if err := sdb.WriteProducedSlots(slots); err != nil {
		return errors.Wrap(BlockInsertionErr, err.Error())
	}
	if err := sdb.WriteHead(block.Index, block.Hash); err != nil {
		return errors.Wrap(BlockInsertionErr, err.Error())
	}
	h.height, h.hash, h.slots = block.Index, block.Hash, slots

	chain.log.Info("Block appended", "shard", block.ShardId, "index", block.Index, "slot", block.Slot,
		"hash", block.Hash.Hex(), "txs", len(block.Transactions))
	if chain.bus != nil {
		chain.bus.Publish(&events.NewBlockEvent{Block: block})
	}
	return nil
}

func (chain *Blockchain) validateBlock(block *types.Block, h *head) error {
	if block.PreviousHash != h.hash {
		return errors.Wrapf(ParentHashIsInvalid, "shard %v: expected %v, got %v", block.ShardId, h.hash.Hex(), block.PreviousHash.Hex())
	}
	if block.Index != h.height+1 {
		return errors.Wrapf(ErrInvalidIndex, "shard %v: expected %v, got %v", block.ShardId, h.height+1, block.Index)
	}
	if block.Slot > math.MaxUint32 {
		return errors.Errorf("slot %v is out of range", block.Slot)
	}
	if h.slots.Contains(uint32(block.Slot)) {
		return errors.Wrapf(ErrSlotTaken, "shard %v, slot %v", block.ShardId, block.Slot)
	}
	return types.VerifyBlock(block)
}

func (chain *Blockchain) GetBlock(hash common.Hash) *types.Block {
	return chain.repo.ReadBlock(hash)
}

func (chain *Blockchain) GetBlockByHeight(shardId common.ShardId, height uint64) *types.Block {
	hash, err := chain.repo.Shard(shardId).ReadCanonicalHash(height)
	if err != nil || hash.IsEmpty() {
		return nil
	}
	return chain.GetBlock(hash)
}

func (chain *Blockchain) HasSlot(shardId common.ShardId, slot uint64) bool {
	chain.mutex.RLock()
	defer chain.mutex.RUnlock()
	h, ok := chain.heads[shardId]
	return ok && slot <= math.MaxUint32 && h.slots.Contains(uint32(slot))
}

// ProducedSlots is the number of slots of the shard that have a block.
func (chain *Blockchain) ProducedSlots(shardId common.ShardId) uint64 {
	chain.mutex.RLock()
	defer chain.mutex.RUnlock()
	h, ok := chain.heads[shardId]
	if !ok {
		return 0
	}
	return h.slots.GetCardinality()
}

func (chain *Blockchain) Close() error {
	return chain.repo.Close()
}
