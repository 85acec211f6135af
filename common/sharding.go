package common

const MinShardSize = 2
const MaxShardSize = 4

// CalculateShardsNumber doubles or halves the shards count until every shard holds
// between minShardSize and maxShardSize nodes.
func CalculateShardsNumber(minShardSize, maxShardSize, networkSize, currentShardsNum int) int {
	if currentShardsNum < 1 {
		currentShardsNum = 1
	}
	shouldRemoveShards := networkSize <= minShardSize*currentShardsNum
	shouldAddShards := networkSize >= maxShardSize*currentShardsNum

	for shouldAddShards {
		currentShardsNum *= 2
		if networkSize < maxShardSize*currentShardsNum {
			return currentShardsNum
		}
	}
	for shouldRemoveShards && currentShardsNum > 1 {
		currentShardsNum /= 2
		if networkSize > minShardSize*currentShardsNum || currentShardsNum == 1 {
			return currentShardsNum
		}
	}
	return currentShardsNum
}
