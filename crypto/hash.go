package crypto

import (
	"github.com/patience-network/patience-go/common"
	"golang.org/x/crypto/sha3"
	"hash"
	"sync"
)

var keccak256Pool = sync.Pool{New: func() interface{} {
	return sha3.NewLegacyKeccak256()
}}

func Hash(data []byte) common.Hash {
	h, ok := keccak256Pool.Get().(hash.Hash)
	if !ok {
		h = sha3.NewLegacyKeccak256()
	}
	defer keccak256Pool.Put(h)
	h.Reset()

	var b common.Hash

	h.Write(data)
	h.Sum(b[:0])

	return b
}

// HashConcat hashes the concatenation of parts without allocating the joined slice.
func HashConcat(parts ...[]byte) common.Hash {
	h, ok := keccak256Pool.Get().(hash.Hash)
	if !ok {
		h = sha3.NewLegacyKeccak256()
	}
	defer keccak256Pool.Put(h)
	h.Reset()

	for _, p := range parts {
		h.Write(p)
	}
	var b common.Hash
	h.Sum(b[:0])
	return b
}
