// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet builds, signs and publishes transactions for the UTXO
// chains, and exposes them through a WalletClient per chain.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/netparams"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
	"github.com/xchain-go/xchain-utxo/wallet/txauthor"
	"github.com/xchain-go/xchain-utxo/wallet/txrules"
)

var (
	// ErrInvalidAddress is returned when the recipient or the sender is
	// not a valid address of the client's network.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNoSpendableFunds is returned when the sender has no UTXO that
	// may be spent under the intent's confirmation policy.
	ErrNoSpendableFunds = errors.New("no utxos to send")

	// ErrInsufficientBalance is returned when the spendable UTXOs cannot
	// cover the amount plus the fee.
	ErrInsufficientBalance = txauthor.ErrInsufficientBalance

	// ErrInvalidAmount is returned when the amount to send is not
	// positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrMissingFeeRate is returned when a transaction is created without
	// a fee rate.
	ErrMissingFeeRate = errors.New("missing fee rate")

	// ErrFeeRateTooLarge is returned when a transaction is created with a
	// fee rate that is larger than DefaultMaxFeeRate.
	ErrFeeRateTooLarge = errors.New("fee rate too large")

	// ErrInvalidPrevTx is returned when the raw source transaction of a
	// UTXO cannot be decoded.
	ErrInvalidPrevTx = errors.New("invalid previous transaction")

	// ErrPrevTxMismatch is returned when the raw source transaction of a
	// UTXO does not contain the output the indexer reported.
	ErrPrevTxMismatch = errors.New("previous transaction does not match " +
		"utxo")

	// ErrNilTxIntent is returned when a nil `TxIntent` is provided.
	ErrNilTxIntent = errors.New("nil TxIntent")
)

// txVersion is the version of the transactions created by the wallet.
const txVersion = 2

// DefaultMaxFeeRate is the largest fee rate the wallet considers sane.
//
//nolint:mnd // 1000 sat/b default max fee.
var DefaultMaxFeeRate = btcunit.NewSatPerByte(1000)

// UTXOScanner returns the unspent outputs of an address. It is implemented
// by chain.Repository.
type UTXOScanner interface {
	// Scan returns the UTXOs of the address, only the confirmed ones if
	// confirmedOnly is set, with their raw source transactions attached
	// if fetchTxHex is set.
	Scan(ctx context.Context, address string, confirmedOnly,
		fetchTxHex bool) ([]chain.UTXO, error)
}

// A compile time check to ensure that chain.Repository implements the
// interface.
var _ UTXOScanner = (*chain.Repository)(nil)

// TxCreator provides an interface for creating transactions. Its primary
// role is to produce a fully-formed, unsigned transaction that can be passed
// to SignPacket.
type TxCreator interface {
	// CreateTransaction creates a new, unsigned transaction based on the
	// provided intent. The resulting AuthoredTx contains the unsigned
	// PSBT and the UTXOs it was funded from.
	CreateTransaction(ctx context.Context, intent *TxIntent) (
		*AuthoredTx, error)
}

// A compile time check to ensure that TxBuilder implements the interface.
var _ TxCreator = (*TxBuilder)(nil)

// TxIntent represents the user's intent to create a transaction. It bundles
// every parameter needed to pay a single recipient from the sender's UTXOs,
// optionally with a memo.
//
// Example:
//
//	intent := &TxIntent{
//		Amount:    50_000,
//		Recipient: "tb1q...",
//		Memo:      "SWAP:THOR.RUNE",
//		FeeRate:   btcunit.NewSatPerByte(10),
//		Sender:    "tb1q...",
//	}
type TxIntent struct {
	// Amount is the value paid to the recipient. This field is required.
	Amount btcutil.Amount

	// Recipient is the address paid. It must be a valid address of the
	// builder's network.
	Recipient string

	// Memo is an optional text carried by an OP_RETURN output.
	Memo string

	// FeeRate specifies the desired fee rate in sat/b. It is rounded to
	// a whole number of sat/b before use. This field is required.
	FeeRate btcunit.SatPerByte

	// Sender is the address whose UTXOs fund the transaction. The change
	// is paid back to it.
	Sender string

	// SpendPending allows unconfirmed UTXOs to be spent.
	SpendPending bool

	// FetchTxHex attaches the full source transaction of every input to
	// the PSBT, as required by some hardware signers.
	FetchTxHex bool

	// ChangeDustThreshold overrides the smallest change returned to the
	// sender. A smaller surplus is paid to the miner.
	ChangeDustThreshold fn.Option[btcutil.Amount]
}

// AuthoredTx holds the state of a newly created transaction.
type AuthoredTx struct {
	// Packet is the unsigned transaction with the data needed to sign
	// each input.
	Packet *psbt.Packet

	// UTXOs are all the UTXOs of the sender returned by the scan.
	UTXOs []chain.UTXO

	// Inputs are the UTXOs spent by the transaction, in input order.
	Inputs []chain.UTXO

	// Fee is the fee paid by the transaction.
	Fee btcutil.Amount

	// FeeRate is the whole sat/b rate used to fund the transaction.
	FeeRate btcunit.SatPerByte

	// ChangeIndex is the index of the change output, or -1 if there is
	// none.
	ChangeIndex int
}

// TxBuilder creates transactions for a single network from the UTXOs
// returned by a scanner.
type TxBuilder struct {
	params  *netparams.Params
	scanner UTXOScanner
}

// NewTxBuilder returns a TxBuilder for the network described by params.
func NewTxBuilder(params *netparams.Params, scanner UTXOScanner) *TxBuilder {
	return &TxBuilder{
		params:  params,
		scanner: scanner,
	}
}

// validatedIntent holds the decoded parts of a TxIntent.
type validatedIntent struct {
	recipientScript []byte
	senderScript    []byte
	memoScript      fn.Option[[]byte]
}

// validateTxIntent performs a series of checks on a TxIntent to ensure it is
// well-formed. It is called before the UTXOs are scanned so that a bad
// intent never reaches the network.
//
// The following checks are performed:
//   - The recipient and the sender must be addresses of the network.
//   - The amount must be positive and not dust.
//   - The fee rate must be positive and not above DefaultMaxFeeRate.
//   - The memo must fit in a data carrier output.
func (b *TxBuilder) validateTxIntent(intent *TxIntent) (*validatedIntent,
	error) {

	recipientScript, err := b.addressScript(intent.Recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	senderScript, err := b.addressScript(intent.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}

	if intent.Amount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, intent.Amount)
	}

	// The recipient output must not be a dust output according to the
	// default relay fee policy.
	err = txrules.CheckOutput(
		wire.NewTxOut(int64(intent.Amount), recipientScript),
		txrules.DefaultRelayFeePerKb,
	)
	if err != nil {
		return nil, err
	}

	if intent.FeeRate.Sign() <= 0 {
		return nil, ErrMissingFeeRate
	}

	// Ensure the fee rate is not "insane". This prevents users from
	// accidentally paying exorbitant fees.
	if intent.FeeRate.GreaterThan(DefaultMaxFeeRate) {
		return nil, fmt.Errorf("%w: fee rate of %s is too high, "+
			"max sane fee rate is %s", ErrFeeRateTooLarge,
			intent.FeeRate, DefaultMaxFeeRate)
	}

	memoScript, err := txrules.CompileMemo(intent.Memo)
	if err != nil {
		return nil, err
	}

	return &validatedIntent{
		recipientScript: recipientScript,
		senderScript:    senderScript,
		memoScript:      memoScript,
	}, nil
}

// addressScript decodes an address of the builder's network and returns its
// output script.
func (b *TxBuilder) addressScript(address string) ([]byte, error) {
	addr, err := b.params.DecodeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address,
			err)
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address,
			err)
	}

	return script, nil
}

// CreateTransaction scans the sender's UTXOs, selects the inputs that pay the
// recipient, the memo and the fee, and assembles an unsigned PSBT. It is the
// main implementation of the TxCreator interface.
//
// The build is a pure function of the scanned UTXOs: two calls over the same
// UTXO set produce the same transaction.
func (b *TxBuilder) CreateTransaction(ctx context.Context, intent *TxIntent) (
	*AuthoredTx, error) {

	// Check that the intent is not nil.
	if intent == nil {
		return nil, ErrNilTxIntent
	}

	validated, err := b.validateTxIntent(intent)
	if err != nil {
		return nil, err
	}

	// Only confirmed UTXOs are considered unless the caller explicitly
	// allows spending pending ones.
	utxos, err := b.scanner.Scan(
		ctx, intent.Sender, !intent.SpendPending, intent.FetchTxHex,
	)
	if err != nil {
		return nil, fmt.Errorf("scan utxos of %s: %w", intent.Sender, err)
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSpendableFunds,
			intent.Sender)
	}

	targets := []txauthor.Output{{
		Address: intent.Recipient,
		Value:   intent.Amount,
	}}
	validated.memoScript.WhenSome(func(script []byte) {
		targets = append(targets, txauthor.Output{Script: script})
	})

	var opts []txauthor.SelectOption
	intent.ChangeDustThreshold.WhenSome(func(threshold btcutil.Amount) {
		opts = append(opts, txauthor.WithChangeDustThreshold(threshold))
	})

	selection, err := txauthor.SelectCoins(
		utxos, targets, intent.FeeRate, opts...,
	)
	if err != nil {
		return nil, err
	}

	packet, err := b.buildPacket(selection, validated)
	if err != nil {
		return nil, err
	}

	log.Debugf("Created tx %v spending %d of %d utxos, fee=%v, "+
		"rate=%v", packet.UnsignedTx.TxHash(), len(selection.Inputs),
		len(utxos), selection.Fee, selection.FeeRate)
	log.Tracef("Unsigned tx: %v", newLogClosure(func() string {
		return spew.Sdump(packet.UnsignedTx)
	}))

	return &AuthoredTx{
		Packet:      packet,
		UTXOs:       utxos,
		Inputs:      selection.Inputs,
		Fee:         selection.Fee,
		FeeRate:     selection.FeeRate,
		ChangeIndex: selection.ChangeIndex,
	}, nil
}

// buildPacket turns a selection into an unsigned PSBT. Every input carries
// its witness UTXO, and its full source transaction when one was fetched.
func (b *TxBuilder) buildPacket(selection *txauthor.Selection,
	validated *validatedIntent) (*psbt.Packet, error) {

	tx := wire.NewMsgTx(txVersion)

	for _, utxo := range selection.Inputs {
		outPoint, err := utxo.OutPoint()
		if err != nil {
			return nil, err
		}

		tx.AddTxIn(wire.NewTxIn(&outPoint, nil, nil))
	}

	for _, output := range selection.Outputs {
		var script []byte
		switch {
		// An output without address or script is the change, which is
		// always paid back to the sender.
		case output.IsChange():
			script = validated.senderScript

		// The memo output is re-emitted from the compiled memo with a
		// zero value.
		case len(output.Script) > 0:
			script = validated.memoScript.UnwrapOr(output.Script)

		default:
			script = validated.recipientScript
		}

		tx.AddTxOut(wire.NewTxOut(int64(output.Value), script))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("create psbt: %w", err)
	}

	for i, utxo := range selection.Inputs {
		err := addInputInfo(
			&packet.Inputs[i], utxo, validated.senderScript,
		)
		if err != nil {
			return nil, err
		}
	}

	return packet, nil
}
