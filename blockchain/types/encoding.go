package types

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"sync"
)

const maxEncodedElements = 100000

var (
	cborOnce sync.Once
	cborEnc  cbor.EncMode
	cborDec  cbor.DecMode
	initErr  error
)

func initCBOR() {
	cborOnce.Do(func() {
		var err error
		cborEnc, err = cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			initErr = errors.Wrap(err, "failed to create CBOR encoder")
			return
		}
		cborDec, err = cbor.DecOptions{
			DupMapKey:        cbor.DupMapKeyEnforcedAPF,
			IndefLength:      cbor.IndefLengthForbidden,
			MaxArrayElements: maxEncodedElements,
			MaxMapPairs:      maxEncodedElements,
			MaxNestedLevels:  32,
		}.DecMode()
		if err != nil {
			initErr = errors.Wrap(err, "failed to create CBOR decoder")
		}
	})
}

// Encode returns the canonical CBOR encoding of v. Equal values always encode to
// equal bytes, which makes the encoding safe to hash.
func Encode(v interface{}) ([]byte, error) {
	initCBOR()
	if initErr != nil {
		return nil, initErr
	}
	return cborEnc.Marshal(v)
}

func Decode(data []byte, v interface{}) error {
	initCBOR()
	if initErr != nil {
		return initErr
	}
	return cborDec.Unmarshal(data, v)
}
