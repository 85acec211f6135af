package database

import (
	"encoding/binary"
	"github.com/RoaringBitmap/roaring"
	"github.com/patience-network/patience-go/common"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"
)

const headSize = 8 + common.HashLength

// ShardDb keeps the chain index of a single shard under its own key prefix.
type ShardDb struct {
	db      dbm.DB
	shardId common.ShardId
}

func NewShardDb(db dbm.DB, shardId common.ShardId) *ShardDb {
	prefix := make([]byte, len(shardDbPrefix)+4)
	copy(prefix, shardDbPrefix)
	binary.BigEndian.PutUint32(prefix[len(shardDbPrefix):], uint32(shardId))
	return &ShardDb{db: dbm.NewPrefixDB(db, prefix), shardId: shardId}
}

// encodeBlockNumber encodes a block number as big endian uint64
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

func headerHashKey(number uint64) []byte {
	key := append([]byte{}, headerPrefix...)
	key = append(key, encodeBlockNumber(number)...)
	return append(key, headerHashSuffix...)
}

func (sdb *ShardDb) ReadHead() (height uint64, hash common.Hash, ok bool, err error) {
	data, err := sdb.db.Get(headKey)
	if err != nil {
		return 0, common.Hash{}, false, err
	}
	if data == nil {
		return 0, common.Hash{}, false, nil
	}
	if len(data) != headSize {
		return 0, common.Hash{}, false, errors.Errorf("shard %v: invalid head record length %v", sdb.shardId, len(data))
	}
	return binary.BigEndian.Uint64(data[:8]), common.BytesToHash(data[8:]), true, nil
}

func (sdb *ShardDb) WriteHead(height uint64, hash common.Hash) error {
	data := make([]byte, headSize)
	binary.BigEndian.PutUint64(data, height)
	copy(data[8:], hash[:])
	return sdb.db.SetSync(headKey, data)
}

func (sdb *ShardDb) WriteCanonicalHash(height uint64, hash common.Hash) error {
	return sdb.db.Set(headerHashKey(height), hash.Bytes())
}

func (sdb *ShardDb) ReadCanonicalHash(height uint64) (common.Hash, error) {
	data, err := sdb.db.Get(headerHashKey(height))
	if err != nil || data == nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// ReadProducedSlots returns the bitmap of slot indexes that have a block in this shard.
func (sdb *ShardDb) ReadProducedSlots() (*roaring.Bitmap, error) {
	bitmap := roaring.New()
	data, err := sdb.db.Get(producedSlotsKey)
	if err != nil || data == nil {
		return bitmap, err
	}
	if err := bitmap.UnmarshalBinary(data); err != nil {
		return nil, errors.Wrapf(err, "shard %v: invalid produced slots bitmap", sdb.shardId)
	}
	return bitmap, nil
}

func (sdb *ShardDb) WriteProducedSlots(bitmap *roaring.Bitmap) error {
	data, err := bitmap.ToBytes()
	if err != nil {
		return err
	}
	return sdb.db.Set(producedSlotsKey, data)
}
