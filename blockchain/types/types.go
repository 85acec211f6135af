package types

import (
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/crypto"
	"github.com/patience-network/patience-go/vdf"
	"github.com/shopspring/decimal"
	"sync/atomic"
)

type Transaction struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Amount  decimal.Decimal `json:"amount"`
	Fee     decimal.Decimal `json:"fee"`
	Nonce   uint64          `json:"nonce"`
	Payload []byte          `json:"payload,omitempty"`

	// caches
	hash atomic.Value
}

type Transactions []*Transaction

type Block struct {
	Index        uint64          `json:"index"`
	Slot         uint64          `json:"slot"`
	Timestamp    int64           `json:"timestamp"`
	Author       peer.ID         `json:"author"`
	Transactions Transactions    `json:"transactions"`
	PreviousHash common.Hash     `json:"previous_hash"`
	Hash         common.Hash     `json:"hash"`
	VdfProof     *vdf.Proof      `json:"vdf_proof"`
	ShardId      common.ShardId  `json:"shard_id"`
	Nonce        uint64          `json:"nonce"`
	MerkleRoot   common.Hash     `json:"merkle_root"`
	StateRoot    common.Hash     `json:"state_root"`
	TotalReward  decimal.Decimal `json:"total_reward"`
	Size         uint64          `json:"size"`
	Signature    []byte          `json:"signature"`
}

// header is the hashed part of a block.
type header struct {
	Index        uint64
	Slot         uint64
	Timestamp    int64
	Author       string
	PreviousHash []byte
	VdfProof     []byte
	ShardId      uint32
	Nonce        uint64
	MerkleRoot   []byte
	StateRoot    []byte
	TotalReward  string
}

// txBody is the hashed form of a transaction. Decimals are hashed in their string
// form, which does not depend on how the value was constructed.
type txBody struct {
	From    string
	To      string
	Amount  string
	Fee     string
	Nonce   uint64
	Payload []byte
}

func (tx *Transaction) Hash() common.Hash {
	if hash := tx.hash.Load(); hash != nil {
		return hash.(common.Hash)
	}
	data, _ := Encode(&txBody{
		From:    tx.From,
		To:      tx.To,
		Amount:  tx.Amount.String(),
		Fee:     tx.Fee.String(),
		Nonce:   tx.Nonce,
		Payload: tx.Payload,
	})
	h := crypto.Hash(data)
	tx.hash.Store(h)
	return h
}

func (tx *Transaction) Size() int {
	b, _ := Encode(tx)
	return len(b)
}

// FeeOrZero guards against transactions decoded without a fee.
func (tx *Transaction) FeeOrZero() decimal.Decimal {
	if tx.Fee.IsNegative() {
		return decimal.Zero
	}
	return tx.Fee
}

// Len returns the length of s.
func (s Transactions) Len() int { return len(s) }

func (s Transactions) GetHash(i int) common.Hash { return s[i].Hash() }

func (s Transactions) TotalFee() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range s {
		total = total.Add(tx.FeeOrZero())
	}
	return total
}

// ComputeHash returns keccak256 over the canonical encoding of the header fields.
// Hash, Size and Signature are not covered.
func (b *Block) ComputeHash() common.Hash {
	h := header{
		Index:        b.Index,
		Slot:         b.Slot,
		Timestamp:    b.Timestamp,
		Author:       string(b.Author),
		PreviousHash: b.PreviousHash.Bytes(),
		ShardId:      uint32(b.ShardId),
		Nonce:        b.Nonce,
		MerkleRoot:   b.MerkleRoot.Bytes(),
		StateRoot:    b.StateRoot.Bytes(),
		TotalReward:  b.TotalReward.String(),
	}
	if b.VdfProof != nil {
		h.VdfProof = b.VdfProof.Bytes()
	}
	data, _ := Encode(&h)
	return crypto.Hash(data)
}

func (b *Block) IsEmpty() bool {
	return len(b.Transactions) == 0
}

func (b *Block) ToBytes() ([]byte, error) {
	return Encode(b)
}

func (b *Block) FromBytes(data []byte) error {
	return Decode(data, b)
}

// Seal fills MerkleRoot and Hash, signs the hash when signer is set and records the
// encoded size of the final block.
func (b *Block) Seal(signer Signer) error {
	b.MerkleRoot = DeriveSha(b.Transactions)
	b.Hash = b.ComputeHash()
	if signer != nil {
		if err := SignBlock(b, signer); err != nil {
			return err
		}
	}
	return b.updateSize()
}

// updateSize iterates until Size equals the length of the encoding that contains it.
func (b *Block) updateSize() error {
	for i := 0; i < 4; i++ {
		data, err := b.ToBytes()
		if err != nil {
			return err
		}
		if uint64(len(data)) == b.Size {
			return nil
		}
		b.Size = uint64(len(data))
	}
	return nil
}
