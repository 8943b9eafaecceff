// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams describes the UTXO chains and networks the wallet clients
// can operate on: their address encoding rules, key derivation paths, default
// remote services and block explorers.
package netparams

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	// ErrUnknownNetwork is returned when a network name cannot be mapped to
	// a supported network.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrUnknownChain is returned when a chain name cannot be mapped to a
	// supported chain.
	ErrUnknownChain = errors.New("unknown chain")

	// ErrWrongNetwork is returned when an address decodes correctly but
	// belongs to a different network.
	ErrWrongNetwork = errors.New("address is for a different network")
)

// Chain identifies a UTXO chain.
type Chain string

const (
	// Bitcoin is the bitcoin chain.
	Bitcoin Chain = "bitcoin"

	// Litecoin is the litecoin chain.
	Litecoin Chain = "litecoin"
)

// ParseChain maps a user supplied chain name to a Chain.
func ParseChain(name string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bitcoin", "btc":
		return Bitcoin, nil

	case "litecoin", "ltc":
		return Litecoin, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChain, name)
	}
}

// Network identifies which network of a chain a client talks to.
type Network string

const (
	// Mainnet is the production network.
	Mainnet Network = "mainnet"

	// Testnet is the public test network.
	Testnet Network = "testnet"
)

// ParseNetwork maps a user supplied network name to a Network.
func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mainnet", "main":
		return Mainnet, nil

	case "testnet", "test", "testnet3":
		return Testnet, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}

// bip84Purpose is the BIP-0084 purpose used for native segwit (P2WPKH) key
// derivation.
const bip84Purpose = 84

// Params bundles everything that differs between the supported chain and
// network combinations.
type Params struct {
	// Params holds the address and key encoding rules of the network.
	*chaincfg.Params

	// Chain is the chain these parameters belong to.
	Chain Chain

	// Network is the network these parameters belong to.
	Network Network

	// Ticker is the asset symbol, e.g. BTC.
	Ticker string

	// AddressPrefix is the human readable prefix of the native segwit
	// addresses produced by the wallet, e.g. bc1.
	AddressPrefix string

	// CoinType is the BIP-0044 coin type used in derivation paths.
	CoinType uint32

	// SochainNetwork is the network code used in sochain API paths.
	SochainNetwork string

	// HaskoinURL is the default haskoin endpoint, including the network
	// segment. It is empty when haskoin does not index the network.
	HaskoinURL string

	// EsploraURL is the default esplora REST endpoint.
	EsploraURL string

	// NodeURL is the default JSON-RPC node used for broadcasting, if any.
	NodeURL string

	// Indexers is the default provider order for UTXO scans.
	Indexers []string

	// explorerAddressFmt and explorerTxFmt are the printf formats of the
	// block explorer links.
	explorerURL        string
	explorerAddressFmt string
	explorerTxFmt      string
}

// DefaultSochainURL is the base URL of the sochain v2 API.
const DefaultSochainURL = "https://sochain.com/api/v2"

var (
	// BitcoinMainNet holds the parameters of the bitcoin main network.
	BitcoinMainNet = Params{
		Params:             &chaincfg.MainNetParams,
		Chain:              Bitcoin,
		Network:            Mainnet,
		Ticker:             "BTC",
		AddressPrefix:      "bc1",
		CoinType:           0,
		SochainNetwork:     "BTC",
		HaskoinURL:         "https://api.haskoin.com/btc",
		EsploraURL:         "https://blockstream.info/api",
		Indexers:           []string{"sochain", "haskoin", "esplora"},
		explorerURL:        "https://blockstream.info",
		explorerAddressFmt: "https://blockstream.info/address/%s",
		explorerTxFmt:      "https://blockstream.info/tx/%s",
	}

	// BitcoinTestNet holds the parameters of the bitcoin test network.
	BitcoinTestNet = Params{
		Params:             &chaincfg.TestNet3Params,
		Chain:              Bitcoin,
		Network:            Testnet,
		Ticker:             "BTC",
		AddressPrefix:      "tb1",
		CoinType:           1,
		SochainNetwork:     "BTCTEST",
		HaskoinURL:         "https://api.haskoin.com/btctest",
		EsploraURL:         "https://blockstream.info/testnet/api",
		Indexers:           []string{"sochain", "haskoin", "esplora"},
		explorerURL:        "https://blockstream.info/testnet",
		explorerAddressFmt: "https://blockstream.info/testnet/address/%s",
		explorerTxFmt:      "https://blockstream.info/testnet/tx/%s",
	}

	// LitecoinMainNet holds the parameters of the litecoin main network.
	LitecoinMainNet = Params{
		Params:             &litecoinMainNetParams,
		Chain:              Litecoin,
		Network:            Mainnet,
		Ticker:             "LTC",
		AddressPrefix:      "ltc1",
		CoinType:           2,
		SochainNetwork:     "LTC",
		EsploraURL:         "https://litecoinspace.org/api",
		NodeURL:            "https://ltc.thorchain.info",
		Indexers:           []string{"sochain", "esplora"},
		explorerURL:        "https://ltc.bitaps.com",
		explorerAddressFmt: "https://ltc.bitaps.com/%s",
		explorerTxFmt:      "https://ltc.bitaps.com/%s",
	}

	// LitecoinTestNet holds the parameters of the litecoin test network.
	LitecoinTestNet = Params{
		Params:             &litecoinTestNetParams,
		Chain:              Litecoin,
		Network:            Testnet,
		Ticker:             "LTC",
		AddressPrefix:      "tltc1",
		CoinType:           1,
		SochainNetwork:     "LTCTEST",
		EsploraURL:         "https://litecoinspace.org/testnet/api",
		NodeURL:            "https://testnet.ltc.thorchain.info",
		Indexers:           []string{"sochain", "esplora"},
		explorerURL:        "https://tltc.bitaps.com",
		explorerAddressFmt: "https://tltc.bitaps.com/%s",
		explorerTxFmt:      "https://tltc.bitaps.com/%s",
	}
)

// Lookup returns the parameters of the given chain and network.
func Lookup(chain Chain, network Network) (*Params, error) {
	switch {
	case chain == Bitcoin && network == Mainnet:
		return &BitcoinMainNet, nil

	case chain == Bitcoin && network == Testnet:
		return &BitcoinTestNet, nil

	case chain == Litecoin && network == Mainnet:
		return &LitecoinMainNet, nil

	case chain == Litecoin && network == Testnet:
		return &LitecoinTestNet, nil
	}

	if chain != Bitcoin && chain != Litecoin {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chain)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
}

// DecodeAddress decodes the address and checks that it belongs to this
// network. Checksum and encoding failures are returned from btcutil as is.
func (p *Params) DecodeAddress(address string) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(address, p.Params)
	if err != nil {
		return nil, err
	}

	if !addr.IsForNet(p.Params) {
		return nil, fmt.Errorf("%w: %s is not a %s %s address",
			ErrWrongNetwork, address, p.Chain, p.Network)
	}

	return addr, nil
}

// ValidateAddress returns true if the address is a valid address of this
// network.
func (p *Params) ValidateAddress(address string) bool {
	_, err := p.DecodeAddress(address)
	return err == nil
}

// DerivationPath returns the hardened BIP-0084 path of the external key with
// the given index: m/84'/coin'/0'/0/index.
func (p *Params) DerivationPath(index uint32) []uint32 {
	return []uint32{
		bip84Purpose + hdkeychain.HardenedKeyStart,
		p.CoinType + hdkeychain.HardenedKeyStart,
		hdkeychain.HardenedKeyStart,
		0,
		index,
	}
}

// DerivationPathString returns the derivation path of the given index in
// its textual form, e.g. 84'/0'/0'/0/3.
func (p *Params) DerivationPathString(index uint32) string {
	return fmt.Sprintf("%d'/%d'/0'/0/%d", bip84Purpose, p.CoinType, index)
}

// ExplorerURL returns the base URL of the block explorer.
func (p *Params) ExplorerURL() string {
	return p.explorerURL
}

// ExplorerAddressURL returns the block explorer link of an address.
func (p *Params) ExplorerAddressURL(address string) string {
	return fmt.Sprintf(p.explorerAddressFmt, address)
}

// ExplorerTxURL returns the block explorer link of a transaction.
func (p *Params) ExplorerTxURL(txid string) string {
	return fmt.Sprintf(p.explorerTxFmt, txid)
}

// String returns the chain and network, e.g. bitcoin/testnet.
func (p *Params) String() string {
	return fmt.Sprintf("%s/%s", p.Chain, p.Network)
}
