// Copyright (c) 2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/xchain-go/xchain-utxo/chain"
)

var (
	// ErrUnsupportedScript is returned when signing an input whose
	// previous output is not a P2WPKH output.
	ErrUnsupportedScript = errors.New("unsupported input script")

	// ErrKeyMismatch is returned when signing an input that is not locked
	// to the signing key.
	ErrKeyMismatch = errors.New("input is not locked to signing key")

	// ErrMissingUtxoInfo is returned when a PSBT input carries neither a
	// witness nor a non-witness UTXO.
	ErrMissingUtxoInfo = errors.New("psbt input has no utxo info")
)

// addInputInfo adds the UTXO info of a P2WPKH spend to a PSBT input. The
// witness UTXO is always set. When the indexer returned the full source
// transaction it is included as the non-witness UTXO, after checking that it
// really is the transaction that created the output.
//
// A UTXO reported without a script takes it from the source transaction, or
// failing that from the sender's address, as all UTXOs scanned belong to it.
func addInputInfo(in *psbt.PInput, utxo chain.UTXO,
	senderScript []byte) error {

	pkScript := utxo.WitnessScript

	if utxo.RawTxHex != "" {
		prevTx, err := decodePrevTx(utxo)
		if err != nil {
			return err
		}

		// As a fix for CVE-2020-14199 the full non-witness UTXO is
		// included for segwit v0 spends whenever it is known.
		in.NonWitnessUtxo = prevTx

		if len(pkScript) == 0 {
			pkScript = prevTx.TxOut[utxo.Index].PkScript
		}
	}

	if len(pkScript) == 0 {
		pkScript = senderScript
	}

	in.WitnessUtxo = utxo.TxOut()
	in.WitnessUtxo.PkScript = pkScript
	in.SighashType = txscript.SigHashAll

	return nil
}

// decodePrevTx decodes the raw source transaction of a UTXO and checks that
// it holds the reported output.
func decodePrevTx(utxo chain.UTXO) (*wire.MsgTx, error) {
	rawTx, err := hex.DecodeString(utxo.RawTxHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPrevTx, utxo.Hash,
			err)
	}

	prevTx := wire.NewMsgTx(wire.TxVersion)
	if err := prevTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPrevTx, utxo.Hash,
			err)
	}

	if txid := prevTx.TxHash().String(); txid != utxo.Hash {
		return nil, fmt.Errorf("%w: raw tx %s given for utxo %s:%d",
			ErrPrevTxMismatch, txid, utxo.Hash, utxo.Index)
	}

	if int(utxo.Index) >= len(prevTx.TxOut) {
		return nil, fmt.Errorf("%w: tx %s has no output %d",
			ErrPrevTxMismatch, utxo.Hash, utxo.Index)
	}

	prevOut := prevTx.TxOut[utxo.Index]
	if prevOut.Value != int64(utxo.Value) {
		return nil, fmt.Errorf("%w: output %s:%d holds %v, indexer "+
			"reported %v", ErrPrevTxMismatch, utxo.Hash, utxo.Index,
			btcutil.Amount(prevOut.Value), utxo.Value)
	}

	if len(utxo.WitnessScript) > 0 &&
		!bytes.Equal(prevOut.PkScript, utxo.WitnessScript) {

		return nil, fmt.Errorf("%w: output %s:%d script differs",
			ErrPrevTxMismatch, utxo.Hash, utxo.Index)
	}

	return prevTx, nil
}

// PsbtPrevOutputFetcher returns a txscript.PrevOutFetcher built from the UTXO
// information in a PSBT packet.
func PsbtPrevOutputFetcher(packet *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range packet.UnsignedTx.TxIn {
		in := packet.Inputs[idx]

		// Skip any input that has no UTXO.
		if in.WitnessUtxo == nil && in.NonWitnessUtxo == nil {
			continue
		}

		if in.NonWitnessUtxo != nil {
			prevIndex := txIn.PreviousOutPoint.Index
			fetcher.AddPrevOut(
				txIn.PreviousOutPoint,
				in.NonWitnessUtxo.TxOut[prevIndex],
			)

			continue
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, in.WitnessUtxo)
	}

	return fetcher
}

// SignPacket signs every input of the packet with privKey, finalizes the
// inputs and returns the extracted network transaction. Every input must
// spend a P2WPKH output locked to privKey.
func SignPacket(packet *psbt.Packet,
	privKey *btcec.PrivateKey) (*wire.MsgTx, error) {

	tx := packet.UnsignedTx
	fetcher := PsbtPrevOutputFetcher(packet)

	pubKey := privKey.PubKey().SerializeCompressed()
	keyHash := btcutil.Hash160(pubKey)

	// Every input is checked before the sighash midstate is computed, as
	// it needs the previous output of each of them.
	prevOuts := make([]*wire.TxOut, len(tx.TxIn))
	for idx, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		if prevOut == nil {
			return nil, fmt.Errorf("%w: input %d", ErrMissingUtxoInfo,
				idx)
		}

		if !txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript) {
			return nil, fmt.Errorf("%w: input %d spends %x",
				ErrUnsupportedScript, idx, prevOut.PkScript)
		}

		// A P2WPKH script is OP_0 OP_DATA_20 <key hash>.
		if !bytes.Equal(prevOut.PkScript[2:], keyHash) {
			return nil, fmt.Errorf("%w: input %d", ErrKeyMismatch,
				idx)
		}

		prevOuts[idx] = prevOut
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, fmt.Errorf("create psbt updater: %w", err)
	}

	for idx, prevOut := range prevOuts {
		sig, err := txscript.RawTxInWitnessSignature(
			tx, sigHashes, idx, prevOut.Value, prevOut.PkScript,
			txscript.SigHashAll, privKey,
		)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", idx, err)
		}

		outcome, err := updater.Sign(idx, sig, pubKey, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("add signature to input %d: %w",
				idx, err)
		}
		if outcome != psbt.SignSuccesful {
			return nil, fmt.Errorf("add signature to input %d: "+
				"outcome %v", idx, outcome)
		}
	}

	if err := psbt.MaybeFinalizeAll(packet); err != nil {
		return nil, fmt.Errorf("finalize psbt: %w", err)
	}

	signedTx, err := psbt.Extract(packet)
	if err != nil {
		return nil, fmt.Errorf("extract tx: %w", err)
	}

	log.Debugf("Signed tx %v with %d inputs", signedTx.TxHash(),
		len(signedTx.TxIn))

	return signedTx, nil
}
