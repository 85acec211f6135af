package vdf

import (
	"encoding/binary"
	"github.com/patience-network/patience-go/common"
	"github.com/patience-network/patience-go/crypto"
	"github.com/pkg/errors"
)

const proofSize = common.HashLength*2 + 8

var ErrInvalidProof = errors.New("invalid sequential proof")

// Proof states that Output is the Iterations-th keccak256 iterate of Seed.
type Proof struct {
	Seed       common.Hash `json:"seed"`
	Output     common.Hash `json:"output"`
	Iterations uint64      `json:"iterations"`
}

// Evaluate runs the hash chain. Every step depends on the previous one, so the
// work cannot be split across cores.
func Evaluate(seed common.Hash, iterations uint64) common.Hash {
	cur := seed
	for i := uint64(0); i < iterations; i++ {
		cur = crypto.Hash(cur[:])
	}
	return cur
}

func (p *Proof) Verify(difficulty uint64) bool {
	if p == nil || p.Iterations != difficulty || difficulty == 0 {
		return false
	}
	return Evaluate(p.Seed, p.Iterations) == p.Output
}

func (p *Proof) Bytes() []byte {
	if p == nil {
		return nil
	}
	data := make([]byte, proofSize)
	copy(data, p.Seed[:])
	copy(data[common.HashLength:], p.Output[:])
	binary.BigEndian.PutUint64(data[common.HashLength*2:], p.Iterations)
	return data
}

func ProofFromBytes(data []byte) (*Proof, error) {
	if len(data) != proofSize {
		return nil, errors.Errorf("invalid proof length %v", len(data))
	}
	p := &Proof{
		Seed:       common.BytesToHash(data[:common.HashLength]),
		Output:     common.BytesToHash(data[common.HashLength : common.HashLength*2]),
		Iterations: binary.BigEndian.Uint64(data[common.HashLength*2:]),
	}
	return p, nil
}
