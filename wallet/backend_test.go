package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/netparams"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// TestBackendConfig checks the services picked for every network.
func TestBackendConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		chain    netparams.Chain
		cfg      BackendConfig
		indexers []string
		node     bool
		err      error
	}{
		{
			name:     "bitcoin defaults",
			chain:    netparams.Bitcoin,
			indexers: []string{"sochain", "haskoin", "esplora"},
		},
		{
			name:     "litecoin defaults",
			chain:    netparams.Litecoin,
			indexers: []string{"sochain", "esplora"},
			node:     true,
		},
		{
			name:  "bitcoin with node",
			chain: netparams.Bitcoin,
			cfg: BackendConfig{
				Node: chain.NodeClientConfig{
					Host: "127.0.0.1:18332",
				},
				Indexers: []string{IndexerEsplora},
			},
			indexers: []string{"esplora"},
			node:     true,
		},
		{
			name:  "haskoin on litecoin",
			chain: netparams.Litecoin,
			cfg: BackendConfig{
				Indexers: []string{IndexerHaskoin},
			},
			err: ErrUnknownIndexer,
		},
		{
			name:  "unknown indexer",
			chain: netparams.Bitcoin,
			cfg: BackendConfig{
				Indexers: []string{"blockchair"},
			},
			err: ErrUnknownIndexer,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			params := mustParams(t, tc.chain, netparams.Testnet)

			backend, err := tc.cfg.Factory()(params)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			defer backend.Stop()

			repo, err := chain.NewRepository(backend.Indexers)
			require.NoError(t, err)
			require.Equal(t, tc.indexers, repo.Indexers())

			if !tc.node {
				require.IsType(t, &chain.EsploraClient{},
					backend.Broadcaster)
				require.IsType(t, &chain.EsploraClient{},
					backend.FeeEstimator)

				return
			}

			require.IsType(t, &chain.NodeClient{},
				backend.Broadcaster)

			// The node is asked for fee rates first with esplora as
			// the fallback.
			estimators, ok := backend.FeeEstimator.(
				chain.FeeEstimators)
			require.True(t, ok)
			require.Len(t, estimators, 2)
			require.Same(t, backend.Broadcaster, estimators[0])
			require.IsType(t, &chain.EsploraClient{}, estimators[1])
		})
	}
}

// newEsploraServer serves the UTXOs of address and accepts broadcasts,
// answering with the id of the posted transaction.
func newEsploraServer(t *testing.T, address string,
	broadcasts chan<- *wire.MsgTx) *httptest.Server {

	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/address/"+address+"/utxo":
				fmt.Fprintf(w, `[{"txid":%q,"vout":0,`+
					`"value":100000,"status":`+
					`{"confirmed":true}}]`, testTxID)

			case r.URL.Path == "/fee-estimates":
				fmt.Fprint(w, `{"1":30.2,"3":15,"6":4.8}`)

			case r.URL.Path == "/tx" && r.Method == http.MethodPost:
				body, _ := io.ReadAll(r.Body)

				rawTx, err := hex.DecodeString(string(body))
				if err != nil {
					http.Error(w, "bad hex",
						http.StatusBadRequest)
					return
				}

				tx := wire.NewMsgTx(txVersion)
				err = tx.Deserialize(bytes.NewReader(rawTx))
				if err != nil {
					http.Error(w, "bad tx",
						http.StatusBadRequest)
					return
				}

				broadcasts <- tx
				fmt.Fprint(w, tx.TxHash().String())

			default:
				http.NotFound(w, r)
			}
		},
	))
	t.Cleanup(srv.Close)

	return srv
}

// TestBackendTransfer runs a transfer against an esplora endpoint, using its
// fee estimates and broadcast.
func TestBackendTransfer(t *testing.T) {
	t.Parallel()

	params := mustParams(t, netparams.Bitcoin, netparams.Testnet)
	keys, err := newKeyRing(testSeed(t), 0)
	require.NoError(t, err)
	key, err := keys.key(params, 0)
	require.NoError(t, err)
	sender := key.address.EncodeAddress()

	senderScript, err := txscript.PayToAddrScript(key.address)
	require.NoError(t, err)

	broadcasts := make(chan *wire.MsgTx, 1)
	srv := newEsploraServer(t, sender, broadcasts)

	client, err := NewBitcoinClient(ClientConfig{
		Network: netparams.Testnet,
		Seed:    testSeed(t),
		NewBackend: BackendConfig{
			EsploraURL: srv.URL,
			Indexers:   []string{IndexerEsplora},
			HTTPClient: srv.Client(),
		}.Factory(),
	})
	require.NoError(t, err)
	defer client.Stop()

	fees := client.FeesWithRates(context.Background())
	require.True(t, btcunit.NewSatPerByte(15).Equal(fees.Rates.Fast))
	require.Equal(t, btcutil.Amount(1170), fees.Fees.Fast)

	recipient := newTestAccount(t, 0x02)
	txid, err := client.Transfer(context.Background(), TransferParams{
		Amount:    40_000,
		Recipient: recipient.address,
	})
	require.NoError(t, err)

	tx := <-broadcasts
	require.Equal(t, tx.TxHash().String(), txid)

	// The esplora UTXO carries the sender script: 10 + 63 + 1 + 68 bytes
	// at the fast rate.
	require.Len(t, tx.TxOut, 2)
	require.Equal(t, int64(40_000), tx.TxOut[0].Value)
	require.Equal(t, int64(100_000-40_000-142*15), tx.TxOut[1].Value)

	verifyTx(
		t, tx, txscript.NewCannedPrevOutputFetcher(senderScript, 100_000),
	)
}
