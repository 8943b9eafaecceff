// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain provides the remote collaborators of the wallet clients: UTXO
// indexers, transaction broadcasters and fee estimators, plus a Repository
// that scans unspent outputs across an ordered list of indexers.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

var (
	// ErrIndexerUnavailable is returned when every configured indexer
	// failed to answer a query. It wraps the last underlying cause.
	ErrIndexerUnavailable = errors.New("all indexers unavailable")

	// ErrNoIndexers is returned when a Repository is built without any
	// indexer.
	ErrNoIndexers = errors.New("no indexers configured")

	// ErrBroadcastFailed is returned when the network rejects a raw
	// transaction. The endpoint's message is appended verbatim.
	ErrBroadcastFailed = errors.New("broadcast failed")

	// ErrInvalidResponse is returned when a remote service answers with
	// a payload that cannot be interpreted.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrUnsupported is returned by a service that does not implement a
	// query for the requested network.
	ErrUnsupported = errors.New("unsupported by service")

	// ErrFeeEstimatorUnavailable is returned when no configured fee
	// estimator produced an estimate. It wraps the last underlying cause.
	ErrFeeEstimatorUnavailable = errors.New("all fee estimators unavailable")
)

// UTXO is an unspent transaction output as reported by an indexer. UTXOs are
// built fresh on every scan and never persisted.
type UTXO struct {
	// Hash is the id of the transaction that created the output.
	Hash string

	// Index is the output index within that transaction.
	Index uint32

	// Value is the amount held by the output.
	Value btcutil.Amount

	// WitnessScript is the locking script of the output. It may be empty,
	// in which case a standard pay-to-pubkey-hash spend is assumed when
	// sizing the transaction.
	WitnessScript []byte

	// RawTxHex is the full hex encoded source transaction. It is only
	// populated when requested from the repository.
	RawTxHex string
}

// OutPoint returns the outpoint of the UTXO.
func (u *UTXO) OutPoint() (wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.Hash)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("%w: txid %q: %v",
			ErrInvalidResponse, u.Hash, err)
	}

	return *wire.NewOutPoint(hash, u.Index), nil
}

// TxOut returns the committed output data of the UTXO.
func (u *UTXO) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(u.Value), u.WitnessScript)
}

// Balance is the balance of an address as reported by an indexer.
type Balance struct {
	// Confirmed is the sum of all confirmed unspent outputs.
	Confirmed btcutil.Amount

	// Unconfirmed is the net value of mempool transactions, which may be
	// negative when the address is spending.
	Unconfirmed btcutil.Amount
}

// Total returns the confirmed plus unconfirmed balance.
func (b Balance) Total() btcutil.Amount {
	return b.Confirmed + b.Unconfirmed
}

// Indexer is the query interface of a remote UTXO indexer. Implementations
// are interchangeable; the Repository tries them in order.
type Indexer interface {
	// Name returns a short identifier of the service used in logs.
	Name() string

	// UnspentOutputs returns every unspent output of the address,
	// including outputs of unconfirmed transactions.
	UnspentOutputs(ctx context.Context, address string) ([]UTXO, error)

	// ConfirmedUnspentOutputs returns the unspent outputs of the address
	// that are included in a block.
	ConfirmedUnspentOutputs(ctx context.Context, address string) ([]UTXO,
		error)

	// RawTransactionHex returns the full hex encoded transaction.
	RawTransactionHex(ctx context.Context, txid string) (string, error)

	// AddressBalance returns the balance of the address.
	AddressBalance(ctx context.Context, address string) (Balance, error)
}

// Broadcaster submits signed transactions to the network.
type Broadcaster interface {
	// Broadcast submits the hex encoded raw transaction and returns the
	// id the network assigned to it.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)
}

// FeeEstimator reports fee rates keyed by confirmation target in blocks.
type FeeEstimator interface {
	// FeeEstimates returns the estimated fee rate for each confirmation
	// target the service knows about.
	FeeEstimates(ctx context.Context) (map[uint32]btcunit.SatPerByte,
		error)
}
