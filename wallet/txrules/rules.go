// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txrules provides transaction rules that should be followed by
// transaction authors for wide mempool acceptance and quick mining.
package txrules

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
	"github.com/xchain-go/xchain-utxo/wallet/txsizes"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy for a mempool.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// Transaction rule violations.
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
)

// IsDustAmount determines whether a transaction output value and script
// length would cause the output to be considered dust. Transactions with
// dust outputs are not standard and are rejected by mempools with default
// policies.
func IsDustAmount(amount btcutil.Amount, scriptSize int,
	relayFeePerKb btcutil.Amount) bool {

	// Calculate the total (estimated) cost to the network. This is
	// calculated using the serialize size of the output plus the serial
	// size of a transaction input which redeems it. The output is assumed
	// to be compressed P2PKH as this is the most common script type. Use
	// the average size of a compressed P2PKH redeem input (148) rather
	// than the largest possible (txsizes.TxInputBase +
	// txsizes.TxInputPubKeyHash).
	totalSize := 8 + wire.VarIntSerializeSize(uint64(scriptSize)) +
		scriptSize + 148

	// Dust is defined as an output value where the total cost to the
	// network (output size + input size) is greater than 1/3 of the relay
	// fee.
	return int64(amount)*1000/(3*int64(totalSize)) < int64(relayFeePerKb)
}

// IsDustOutput determines whether a transaction output is considered dust.
// Data carrier outputs are never dust.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	if IsMemoScript(output.PkScript) {
		return false
	}

	return IsDustAmount(
		btcutil.Amount(output.Value), len(output.PkScript),
		relayFeePerKb,
	)
}

// CheckOutput performs simple consensus and policy tests on a transaction
// output.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}

	return nil
}

// DefaultChangeDustThreshold returns the smallest change worth adding as an
// output at the given rate: the cost of one standard output. A smaller
// surplus is left to the miner.
func DefaultChangeDustThreshold(feeRate btcunit.SatPerByte) btcutil.Amount {
	return feeRate.FeeForSizeRoundUp(
		btcunit.NewByteSize(txsizes.StandardOutputSize),
	)
}
