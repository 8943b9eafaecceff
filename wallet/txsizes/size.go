// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsizes estimates the serialized size and the fee of the
// transactions authored by the UTXO clients.
//
// The estimate deliberately prices every input at its full serialized size and
// always budgets two standard outputs (recipient and change), so it may
// overestimate but never underestimates the size of a transaction built from
// the same inputs.
package txsizes

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// Worst case script and input/output size estimates.
const (
	// TxEmptySize is the size of a transaction without inputs or outputs.
	// It is calculated as:
	//
	//   - 4 bytes version
	//   - 1 byte compact int encoding the input count
	//   - 1 byte compact int encoding the output count
	//   - 4 bytes lock time
	TxEmptySize = 4 + 1 + 1 + 4

	// TxInputBase is the size of an input without its script. It is
	// calculated as:
	//
	//   - 32 bytes previous tx
	//   - 4 bytes output index
	//   - 1 byte compact int encoding the script length
	//   - 4 bytes sequence
	TxInputBase = 32 + 4 + 1 + 4

	// TxInputPubKeyHash is the script size assumed for an input whose
	// previous output script is unknown. It is the worst case size of a
	// signature script redeeming a compressed P2PKH output:
	//
	//   - OP_DATA_72
	//   - 71 bytes DER signature + 1 byte sighash
	//   - OP_DATA_33
	//   - 33 bytes serialized compressed pubkey
	TxInputPubKeyHash = 1 + 72 + 1 + 33

	// TxInputSigMarker is the extra byte budgeted per input for its
	// signature.
	TxInputSigMarker = 1

	// TxOutputBase is the size of an output without its script. It is
	// calculated as:
	//
	//   - 8 bytes output value
	//   - 1 byte compact int encoding the script length
	TxOutputBase = 8 + 1

	// TxOutputPubKeyHash is the size of a P2PKH output script.
	TxOutputPubKeyHash = 1 + 1 + 1 + 20 + 1 + 1

	// StandardOutputSize is the size budgeted for each of the recipient
	// and change outputs.
	StandardOutputSize = TxOutputBase + TxOutputPubKeyHash

	// StandardOutputCount is the number of standard outputs budgeted in
	// every estimate.
	StandardOutputCount = 2
)

// MinTxFee is the lowest fee an estimate ever returns, whatever the size and
// the rate.
const MinTxFee btcutil.Amount = 1000

// InputSize returns the size budgeted for an input spending an output with
// the given script, excluding the signature marker. An empty script is priced
// as a P2PKH signature script.
func InputSize(prevScript []byte) btcunit.ByteSize {
	scriptSize := len(prevScript)
	if scriptSize == 0 {
		scriptSize = TxInputPubKeyHash
	}

	return btcunit.NewByteSize(uint64(TxInputBase + scriptSize))
}

// EstimateSize returns the size of a transaction spending outputs with the
// given scripts and paying the recipient, the change and, if memoScript is
// not empty, a data carrier output with that script.
func EstimateSize(prevScripts [][]byte, memoScript []byte) btcunit.ByteSize {
	size := btcunit.NewByteSize(TxEmptySize)

	for _, script := range prevScripts {
		size = size.Add(InputSize(script))
	}
	size = size.Add(btcunit.NewByteSize(
		uint64(len(prevScripts)) * TxInputSigMarker,
	))

	size = size.Add(
		btcunit.NewByteSize(StandardOutputSize).Mul(StandardOutputCount),
	)

	if len(memoScript) > 0 {
		size = size.Add(btcunit.NewByteSize(
			uint64(TxOutputBase + len(memoScript)),
		))
	}

	return size
}

// EstimateFee returns the fee of the transaction described by EstimateSize
// at the given rate. Fractions of a satoshi are rounded up and the result is
// never below MinTxFee.
func EstimateFee(prevScripts [][]byte, feeRate btcunit.SatPerByte,
	memoScript []byte) btcutil.Amount {

	size := EstimateSize(prevScripts, memoScript)

	return ApplyMinFee(feeRate.FeeForSizeRoundUp(size))
}

// ApplyMinFee raises fee to MinTxFee if it is lower.
func ApplyMinFee(fee btcutil.Amount) btcutil.Amount {
	if fee < MinTxFee {
		return MinTxFee
	}

	return fee
}
