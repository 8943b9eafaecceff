package wallet

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/netparams"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// verifyTx runs the script engine over every input of a signed transaction.
func verifyTx(t *testing.T, tx *wire.MsgTx,
	fetcher txscript.PrevOutputFetcher) {

	t.Helper()

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for idx, txIn := range tx.TxIn {
		prevOut := fetcher.FetchPrevOutput(txIn.PreviousOutPoint)
		require.NotNil(t, prevOut)

		vm, err := txscript.NewEngine(
			prevOut.PkScript, tx, idx, txscript.StandardVerifyFlags,
			nil, sigHashes, prevOut.Value, fetcher,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", idx)
	}
}

// TestSignPacket checks that a built packet signs into a valid transaction.
func TestSignPacket(t *testing.T) {
	t.Parallel()

	sender := newTestAccount(t, 0x01)
	recipient := newTestAccount(t, 0x02)
	builder, scanner := newTestBuilder(t)

	prevTx, prevTxHex := newPrevTx(t, 40_000, sender.script)
	scanner.On(
		"Scan", mock.Anything, sender.address, true, true,
	).Return([]chain.UTXO{
		{Hash: testTxID, Index: 0, Value: 30_000},
		{
			Hash:     prevTx.TxHash().String(),
			Index:    0,
			Value:    40_000,
			RawTxHex: prevTxHex,
		},
	}, nil).Once()

	authored, err := builder.CreateTransaction(
		context.Background(), &TxIntent{
			Amount:     55_000,
			Recipient:  recipient.address,
			FeeRate:    btcunit.NewSatPerByte(5),
			Sender:     sender.address,
			FetchTxHex: true,
		},
	)
	require.NoError(t, err)
	require.Len(t, authored.Inputs, 2)

	fetcher := PsbtPrevOutputFetcher(authored.Packet)

	tx, err := SignPacket(authored.Packet, sender.privKey)
	require.NoError(t, err)
	require.Equal(t, authored.Packet.UnsignedTx.TxHash(), tx.TxHash())

	for _, txIn := range tx.TxIn {
		require.Len(t, txIn.Witness, 2)
		require.Empty(t, txIn.SignatureScript)
	}

	verifyTx(t, tx, fetcher)
}

// newRawPacket returns a single input packet spending value from pkScript.
func newRawPacket(t *testing.T, pkScript []byte, value int64) *psbt.Packet {
	t.Helper()

	hash, err := chainhash.NewHashFromStr(testTxID)
	require.NoError(t, err)

	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value-1_000, pkScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	if pkScript != nil {
		packet.Inputs[0].WitnessUtxo = wire.NewTxOut(value, pkScript)
	}

	return packet
}

// TestSignPacketErrors checks that inputs the key cannot sign are rejected.
func TestSignPacketErrors(t *testing.T) {
	t.Parallel()

	sender := newTestAccount(t, 0x01)
	other := newTestAccount(t, 0x02)

	legacyAddr, err := btcutil.NewAddressPubKeyHash(
		bytes.Repeat([]byte{0x01}, 20), netparams.BitcoinTestNet.Params,
	)
	require.NoError(t, err)
	legacyScript, err := txscript.PayToAddrScript(legacyAddr)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		pkScript []byte
		err      error
	}{
		{
			name:     "foreign key",
			pkScript: other.script,
			err:      ErrKeyMismatch,
		},
		{
			name:     "legacy script",
			pkScript: legacyScript,
			err:      ErrUnsupportedScript,
		},
		{
			name: "no utxo info",
			err:  ErrMissingUtxoInfo,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			packet := newRawPacket(t, tc.pkScript, 10_000)
			if tc.pkScript == nil {
				packet.UnsignedTx.TxOut[0].PkScript = sender.script
			}

			_, err := SignPacket(packet, sender.privKey)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

// TestAddInputInfo checks where the witness UTXO script of an input is taken
// from and that its value is the UTXO's.
func TestAddInputInfo(t *testing.T) {
	t.Parallel()

	sender := newTestAccount(t, 0x01)
	other := newTestAccount(t, 0x02)
	prevTx, prevTxHex := newPrevTx(t, 40_000, other.script)

	testCases := []struct {
		name      string
		utxo      chain.UTXO
		script    []byte
		nonWitness bool
	}{
		{
			name: "sender script",
			utxo: chain.UTXO{
				Hash: testTxID, Index: 0, Value: 30_000,
			},
			script: sender.script,
		},
		{
			name: "reported witness script",
			utxo: chain.UTXO{
				Hash: testTxID, Index: 0, Value: 30_000,
				WitnessScript: other.script,
			},
			script: other.script,
		},
		{
			name: "script of the source transaction",
			utxo: chain.UTXO{
				Hash:     prevTx.TxHash().String(),
				Index:    0,
				Value:    40_000,
				RawTxHex: prevTxHex,
			},
			script:    other.script,
			nonWitness: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var in psbt.PInput
			err := addInputInfo(&in, tc.utxo, sender.script)
			require.NoError(t, err)

			witnessUtxo := in.WitnessUtxo
			require.Equal(t, int64(tc.utxo.Value), witnessUtxo.Value)
			require.Equal(t, tc.script, witnessUtxo.PkScript)
			require.Equal(t, txscript.SigHashAll, in.SighashType)
			require.Equal(t, tc.nonWitness,
				in.NonWitnessUtxo != nil)
		})
	}
}
