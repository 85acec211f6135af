package types

import (
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/crypto"
)

type DerivableList interface {
	Len() int
	GetHash(i int) common.Hash
}

// DeriveSha is the merkle root over the hashes of the list items.
func DeriveSha(list DerivableList) common.Hash {
	leaves := make([]common.Hash, list.Len())
	for i := range leaves {
		leaves[i] = list.GetHash(i)
	}
	return crypto.MerkleRoot(leaves)
}
