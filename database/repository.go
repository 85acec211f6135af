package database

import (
	"github.com/golang/snappy"
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/log"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"
	"sync"
)

type Repo struct {
	db     dbm.DB
	mutex  sync.Mutex
	shards map[common.ShardId]*ShardDb
}

func NewRepo(db dbm.DB) *Repo {
	return &Repo{
		db:     db,
		shards: make(map[common.ShardId]*ShardDb),
	}
}

func blockKey(hash common.Hash) []byte {
	return append(append([]byte{}, blockPrefix...), hash.Bytes()...)
}

func (r *Repo) Shard(shardId common.ShardId) *ShardDb {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	sdb, ok := r.shards[shardId]
	if !ok {
		sdb = NewShardDb(r.db, shardId)
		r.shards[shardId] = sdb
	}
	return sdb
}

// WriteBlock stores the snappy compressed canonical encoding of block under its hash.
func (r *Repo) WriteBlock(block *types.Block) error {
	data, err := block.ToBytes()
	if err != nil {
		return errors.Wrap(err, "failed to encode block")
	}
	return r.db.Set(blockKey(block.Hash), snappy.Encode(nil, data))
}

func (r *Repo) ReadBlock(hash common.Hash) *types.Block {
	data, err := r.db.Get(blockKey(hash))
	if err != nil {
		log.Error("Failed to read block", "hash", hash, "err", err)
		return nil
	}
	if data == nil {
		return nil
	}
	decoded, err := snappy.Decode(nil, data)
	if err != nil {
		log.Error("Invalid compressed block", "hash", hash, "err", err)
		return nil
	}
	block := new(types.Block)
	if err := block.FromBytes(decoded); err != nil {
		log.Error("Invalid block encoding", "hash", hash, "err", err)
		return nil
	}
	return block
}

func (r *Repo) HasBlock(hash common.Hash) bool {
	has, err := r.db.Has(blockKey(hash))
	return err == nil && has
}

func (r *Repo) Close() error {
	return r.db.Close()
}
