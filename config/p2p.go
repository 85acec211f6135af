package config

import (
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

type P2P struct {
	// RelayAddr is the multiaddr of the relay the node must reach to participate.
	RelayAddr string
	MaxPeers  int
}

func (p *P2P) Relay() (multiaddr.Multiaddr, error) {
	addr, err := multiaddr.NewMultiaddr(p.RelayAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid relay address %v", p.RelayAddr)
	}
	return addr, nil
}
