package crypto

import (
	"github.com/patience-network/patience-go/common"
)

// MerkleRoot builds a binary keccak256 tree over leaves. An odd node at any level is
// paired with itself. The root of an empty list is the zero hash.
func MerkleRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashConcat(left[:], right[:]))
		}
		level = next
	}
	return level[0]
}
