package types

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidSignature = errors.New("invalid block signature")
	ErrHashMismatch     = errors.New("block hash mismatch")
)

type Signer interface {
	Sign(data []byte) []byte
}

// SignBlock attaches the author's signature over the block hash.
func SignBlock(b *Block, signer Signer) error {
	sig := signer.Sign(b.Hash.Bytes())
	if len(sig) == 0 {
		return errors.New("signer returned empty signature")
	}
	b.Signature = sig
	return nil
}

// VerifyBlock checks that Hash matches the header and that Signature was produced by
// the key behind Author.
func VerifyBlock(b *Block) error {
	if b.ComputeHash() != b.Hash {
		return ErrHashMismatch
	}
	pub, err := b.Author.ExtractPublicKey()
	if err != nil || pub == nil {
		return errors.Wrap(ErrInvalidSignature, "author has no embedded public key")
	}
	ok, err := pub.Verify(b.Hash.Bytes(), b.Signature)
	if err != nil || !ok {
		return ErrInvalidSignature
	}
	return nil
}
