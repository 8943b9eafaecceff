// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor provides the coin selection used to fund the transactions
// authored by the UTXO clients.
package txauthor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
	"github.com/xchain-go/xchain-utxo/wallet/txrules"
	"github.com/xchain-go/xchain-utxo/wallet/txsizes"
)

var (
	// ErrInsufficientBalance is returned when the candidate UTXOs cannot
	// cover the targets plus the fee.
	ErrInsufficientBalance = errors.New("insufficient balance for " +
		"transaction")

	// ErrInvalidFeeRate is returned when the fee rate is not positive
	// once rounded to a whole number of sat/b.
	ErrInvalidFeeRate = errors.New("invalid fee rate")

	// ErrNoTargets is returned when no target output is given.
	ErrNoTargets = errors.New("no target outputs")

	// ErrInvalidTarget is returned for a target that has a negative value
	// or does not set exactly one of address and script.
	ErrInvalidTarget = errors.New("invalid target output")

	// ErrMultipleScriptTargets is returned when more than one script
	// target is given.
	ErrMultipleScriptTargets = errors.New("at most one script target " +
		"is allowed")
)

// Output is a target output of a transaction. Exactly one of Address and
// Script is set on a target. The change output of a Selection sets neither,
// leaving the choice of the change address to the caller.
type Output struct {
	// Address is the encoded address paid by the output.
	Address string

	// Script is the raw output script, used for the memo output.
	Script []byte

	// Value is the amount paid by the output.
	Value btcutil.Amount
}

// IsChange returns true if the output is the change output of a selection.
func (o Output) IsChange() bool {
	return o.Address == "" && len(o.Script) == 0
}

// Selection is the result of a successful coin selection.
type Selection struct {
	// Inputs are the selected UTXOs in the order they were supplied.
	Inputs []chain.UTXO

	// Outputs are the targets in the order they were supplied, followed
	// by the change output if one was added.
	Outputs []Output

	// Fee is the fee paid by the transaction. A surplus too small for a
	// change output is included.
	Fee btcutil.Amount

	// FeeRate is the whole sat/b rate the selection was made with.
	FeeRate btcunit.SatPerByte

	// ChangeIndex is the index of the change output in Outputs, or -1 if
	// there is none.
	ChangeIndex int
}

// TotalInput returns the sum of the selected input values.
func (s *Selection) TotalInput() btcutil.Amount {
	return sumInputs(s.Inputs)
}

// TotalOutput returns the sum of the output values, change included.
func (s *Selection) TotalOutput() btcutil.Amount {
	var total btcutil.Amount
	for _, output := range s.Outputs {
		total += output.Value
	}

	return total
}

// selectOptions holds the optional arguments of SelectCoins.
type selectOptions struct {
	changeDustThreshold fn.Option[btcutil.Amount]
}

// SelectOption is a functional option of SelectCoins.
type SelectOption func(*selectOptions)

// WithChangeDustThreshold sets the smallest surplus that is returned as a
// change output. A smaller surplus is added to the fee. The default is
// txrules.DefaultChangeDustThreshold at the selection's rate.
func WithChangeDustThreshold(threshold btcutil.Amount) SelectOption {
	return func(opts *selectOptions) {
		opts.changeDustThreshold = fn.Some(threshold)
	}
}

// NormalizeFeeRate rounds the rate to a whole number of sat/b, half away from
// zero. A rate that is not positive after rounding is rejected.
func NormalizeFeeRate(feeRate btcunit.SatPerByte) (btcunit.SatPerByte,
	error) {

	rounded := feeRate.Round()
	if rounded.Sign() <= 0 {
		return btcunit.ZeroSatPerByte, fmt.Errorf("%w: %v rounds to %v",
			ErrInvalidFeeRate, feeRate, rounded)
	}

	return rounded, nil
}

// SelectCoins funds the targets from utxos with an accumulative strategy:
// candidates are added in the supplied order, skipping those that cost more
// to spend than they are worth, until their sum covers the targets plus the
// fee estimated for the inputs added so far. The surplus becomes a change
// output unless it is below the change dust threshold.
//
// The selection is a pure function of its arguments.
func SelectCoins(utxos []chain.UTXO, targets []Output,
	feeRate btcunit.SatPerByte, opts ...SelectOption) (*Selection, error) {

	options := &selectOptions{}
	for _, opt := range opts {
		opt(options)
	}

	rate, err := NormalizeFeeRate(feeRate)
	if err != nil {
		return nil, err
	}

	memoScript, err := validateTargets(targets)
	if err != nil {
		return nil, err
	}

	var targetAmount btcutil.Amount
	for _, target := range targets {
		targetAmount += target.Value
	}

	var (
		inputs      []chain.UTXO
		prevScripts [][]byte
		total       btcutil.Amount
		fee         = txsizes.EstimateFee(nil, rate, memoScript)
	)
	for _, utxo := range utxos {
		// Skip inputs that cost more to spend than they are worth.
		inputCost := rate.FeeForSizeRoundUp(
			txsizes.InputSize(utxo.WitnessScript).Add(
				btcunit.NewByteSize(txsizes.TxInputSigMarker),
			),
		)
		if inputCost > utxo.Value {
			continue
		}

		inputs = append(inputs, utxo)
		prevScripts = append(prevScripts, utxo.WitnessScript)
		total += utxo.Value

		fee = txsizes.EstimateFee(prevScripts, rate, memoScript)
		if total >= targetAmount+fee {
			return finalize(
				inputs, targets, rate, total-targetAmount, fee,
				options,
			), nil
		}
	}

	return nil, fmt.Errorf("%w: have %v, need %v", ErrInsufficientBalance,
		total, targetAmount+fee)
}

// finalize builds the selection, adding a change output for a surplus above
// the dust threshold.
func finalize(inputs []chain.UTXO, targets []Output,
	rate btcunit.SatPerByte, available, fee btcutil.Amount,
	options *selectOptions) *Selection {

	outputs := make([]Output, len(targets), len(targets)+1)
	copy(outputs, targets)

	selection := &Selection{
		Inputs:      inputs,
		Outputs:     outputs,
		Fee:         fee,
		FeeRate:     rate,
		ChangeIndex: -1,
	}

	threshold := options.changeDustThreshold.UnwrapOr(
		txrules.DefaultChangeDustThreshold(rate),
	)

	surplus := available - fee
	if surplus < threshold || surplus == 0 {
		selection.Fee += surplus
		return selection
	}

	selection.ChangeIndex = len(selection.Outputs)
	selection.Outputs = append(selection.Outputs, Output{Value: surplus})

	return selection
}

// validateTargets checks the targets and returns the script of the memo
// target, if any.
func validateTargets(targets []Output) ([]byte, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	var memoScript []byte
	for i, target := range targets {
		hasAddress := target.Address != ""
		hasScript := len(target.Script) > 0

		switch {
		case target.Value < 0:
			return nil, fmt.Errorf("%w: target %d has negative "+
				"value %v", ErrInvalidTarget, i, target.Value)

		case hasAddress == hasScript:
			return nil, fmt.Errorf("%w: target %d must set exactly "+
				"one of address and script", ErrInvalidTarget, i)

		case hasScript && memoScript != nil:
			return nil, ErrMultipleScriptTargets

		case hasScript:
			memoScript = target.Script
		}
	}

	return memoScript, nil
}

// sumInputs returns the sum of the UTXO values.
func sumInputs(utxos []chain.UTXO) btcutil.Amount {
	var total btcutil.Amount
	for _, utxo := range utxos {
		total += utxo.Value
	}

	return total
}
