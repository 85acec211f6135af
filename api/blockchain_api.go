package api

import (
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/node"
	"github.com/shopspring/decimal"
)

type BlockchainApi struct {
	node *node.Node
}

func NewBlockchainApi(node *node.Node) *BlockchainApi {
	return &BlockchainApi{node}
}

type Block struct {
	Index        uint64          `json:"index"`
	Slot         uint64          `json:"slot"`
	ShardId      common.ShardId  `json:"shardId"`
	Hash         common.Hash     `json:"hash"`
	PreviousHash common.Hash     `json:"previousHash"`
	Author       string          `json:"author"`
	Timestamp    int64           `json:"timestamp"`
	MerkleRoot   common.Hash     `json:"merkleRoot"`
	StateRoot    common.Hash     `json:"stateRoot"`
	TotalReward  decimal.Decimal `json:"totalReward"`
	Size         uint64          `json:"size"`
	Transactions []common.Hash   `json:"transactions"`
	IsEmpty      bool            `json:"isEmpty"`
}

type SendTxArgs struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Amount  decimal.Decimal `json:"amount"`
	Fee     decimal.Decimal `json:"fee"`
	Nonce   uint64          `json:"nonce"`
	Payload []byte          `json:"payload"`
}

func (api *BlockchainApi) LastBlock(shardId common.ShardId) *Block {
	return api.BlockAt(shardId, api.node.Blockchain().Height(shardId))
}

func (api *BlockchainApi) BlockAt(shardId common.ShardId, index uint64) *Block {
	return convertToBlock(api.node.Blockchain().GetBlockByHeight(shardId, index))
}

func (api *BlockchainApi) Block(hash common.Hash) *Block {
	return convertToBlock(api.node.Blockchain().GetBlock(hash))
}

func (api *BlockchainApi) SendTransaction(args SendTxArgs) (common.Hash, error) {
	return api.node.AddTx(&types.Transaction{
		From:    args.From,
		To:      args.To,
		Amount:  args.Amount,
		Fee:     args.Fee,
		Nonce:   args.Nonce,
		Payload: args.Payload,
	})
}

func (api *BlockchainApi) PendingTransactions() []common.Hash {
	var result []common.Hash
	for _, tx := range api.node.PendingTxs() {
		result = append(result, tx.Hash())
	}
	return result
}

func convertToBlock(block *types.Block) *Block {
	if block == nil {
		return nil
	}
	txs := make([]common.Hash, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txs = append(txs, tx.Hash())
	}
	return &Block{
		Index:        block.Index,
		Slot:         block.Slot,
		ShardId:      block.ShardId,
		Hash:         block.Hash,
		PreviousHash: block.PreviousHash,
		Author:       block.Author.Pretty(),
		Timestamp:    block.Timestamp,
		MerkleRoot:   block.MerkleRoot,
		StateRoot:    block.StateRoot,
		TotalReward:  block.TotalReward,
		Size:         block.Size,
		Transactions: txs,
		IsEmpty:      block.IsEmpty(),
	}
}
