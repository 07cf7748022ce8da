package config

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// NetworkType identifies the source chain.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Regtest NetworkType = "regtest"
	Signet  NetworkType = "signet"
)

// Params returns the chain parameters of the network.
func (n NetworkType) Params() (*chaincfg.Params, error) {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	case Signet:
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", n)
	}
}

// Magic returns the block-file frame magic of the network.
func (n NetworkType) Magic() (uint32, error) {
	p, err := n.Params()
	if err != nil {
		return 0, err
	}
	return uint32(p.Net), nil
}

// GenesisHash returns the configured genesis override, or the network
// genesis when none is set.
func (c *Config) GenesisHash() (chainhash.Hash, error) {
	if c.Genesis != "" {
		h, err := chainhash.NewHashFromStr(c.Genesis)
		if err != nil {
			return chainhash.Hash{}, fmt.Errorf("genesis: %w", err)
		}
		return *h, nil
	}
	p, err := c.Network.Params()
	if err != nil {
		return chainhash.Hash{}, err
	}
	return *p.GenesisHash, nil
}
