package database

var (
	blockPrefix = []byte("b")

	shardDbPrefix = []byte("shard")

	// headKey tracks the latest block of a shard: height (uint64 big endian) + hash.
	headKey = []byte("LastBlock")

	headerPrefix = []byte("h")

	headerHashSuffix = []byte("n") // headerPrefix + num (uint64 big endian) + headerHashSuffix -> hash

	producedSlotsKey = []byte("slots")
)
