package blockchain

import (
	"github.com/patience-network/patience-go/blockchain/types"
	"github.com/patience-network/patience-go/config"
	"github.com/shopspring/decimal"
)

// blockReward is the leader's reward for a block: the fixed block reward plus every
// included fee.
func blockReward(config *config.ConsensusConf, txs types.Transactions) decimal.Decimal {
	reward := config.BlockReward
	if reward.IsNegative() {
		reward = decimal.Zero
	}
	return reward.Add(txs.TotalFee())
}
