package secstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"github.com/awnumar/memguard"
	p2pcrypto "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/pkg/errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoKey = errors.New("node key is not set")

// SecStore keeps the node's marshalled ed25519 private key in locked memory.
type SecStore struct {
	buffer *memguard.LockedBuffer
}

func NewSecStore() *SecStore {
	s := &SecStore{}
	memguard.CatchSignal(func(signal os.Signal) {
		fmt.Println("Memguard: interrupt signal received. Exiting...")
		s.Destroy()
	}, os.Interrupt)
	return s
}

// GenerateKey returns a new marshalled ed25519 private key.
func GenerateKey() ([]byte, error) {
	priv, _, err := p2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}
	return p2pcrypto.MarshalPrivateKey(priv)
}

// LoadOrCreateKey reads a hex encoded key from path, generating and persisting a new
// one when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	if data, err := ioutil.ReadFile(path); err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid node key file %v", path)
		}
		if _, err := p2pcrypto.UnmarshalPrivateKey(key); err != nil {
			return nil, errors.Wrapf(err, "invalid node key file %v", path)
		}
		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "failed to persist node key")
	}
	if err := ioutil.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, errors.Wrap(err, "failed to persist node key")
	}
	return key, nil
}

func (s *SecStore) AddKey(secret []byte) error {
	if _, err := p2pcrypto.UnmarshalPrivateKey(secret); err != nil {
		return errors.Wrap(err, "invalid node key")
	}
	s.Destroy()
	s.buffer = memguard.NewBufferFromBytes(secret)
	return nil
}

func (s *SecStore) privKey() (p2pcrypto.PrivKey, error) {
	if s.buffer == nil || !s.buffer.IsAlive() {
		return nil, ErrNoKey
	}
	return p2pcrypto.UnmarshalPrivateKey(s.buffer.Bytes())
}

func (s *SecStore) GetPeerId() peer.ID {
	sec, err := s.privKey()
	if err != nil {
		return ""
	}
	id, _ := peer.IDFromPrivateKey(sec)
	return id
}

func (s *SecStore) GetPubKey() []byte {
	sec, err := s.privKey()
	if err != nil {
		return nil
	}
	pub, _ := sec.GetPublic().Bytes()
	return pub
}

func (s *SecStore) Sign(data []byte) []byte {
	sec, err := s.privKey()
	if err != nil {
		return nil
	}
	sig, _ := sec.Sign(data)
	return sig
}

func (s *SecStore) Destroy() {
	if s.buffer != nil {
		s.buffer.Destroy()
	}
}

// VerifySignature checks sig over data against the public key embedded in id.
func VerifySignature(id peer.ID, data []byte, sig []byte) bool {
	pub, err := id.ExtractPublicKey()
	if err != nil || pub == nil {
		return false
	}
	ok, err := pub.Verify(data, sig)
	return err == nil && ok
}
