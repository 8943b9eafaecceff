package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// sochainRow renders one get_tx_unspent row.
func sochainRow(txid string, vout int, value string, confs int) string {
	return fmt.Sprintf(`{"txid":"%s","output_no":%d,"script_hex":`+
		`"0014deadbeefdeadbeefdeadbeefdeadbeefdeadbeef","value":"%s",`+
		`"confirmations":%d}`, txid, vout, value, confs)
}

// sochainPage renders a get_tx_unspent reply.
func sochainPage(rows ...string) string {
	return `{"status":"success","data":{"network":"BTCTEST",` +
		`"address":"addr","txs":[` + strings.Join(rows, ",") + `]}}`
}

// TestSochainUnspentOutputs checks row conversion and confirmation
// filtering.
func TestSochainUnspentOutputs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/get_tx_unspent/BTCTEST/addr" {
				http.NotFound(w, r)
				return
			}

			fmt.Fprint(w, sochainPage(
				sochainRow("aa", 0, "0.00100000", 3),
				sochainRow("bb", 1, "0.5", 0),
			))
		},
	))
	t.Cleanup(srv.Close)

	client := NewSochainClient(srv.URL, "BTCTEST", srv.Client())
	require.Equal(t, "sochain", client.Name())

	utxos, err := client.UnspentOutputs(context.Background(), "addr")
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	require.Equal(t, "aa", utxos[0].Hash)
	require.EqualValues(t, 0, utxos[0].Index)
	require.Equal(t, btcutil.Amount(100_000), utxos[0].Value)
	require.Len(t, utxos[0].WitnessScript, 22)
	require.Equal(t, btcutil.Amount(50_000_000), utxos[1].Value)

	confirmed, err := client.ConfirmedUnspentOutputs(
		context.Background(), "addr",
	)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	require.Equal(t, "aa", confirmed[0].Hash)
}

// TestSochainPagination checks that a full page triggers a follow-up query
// starting after the last txid.
func TestSochainPagination(t *testing.T) {
	t.Parallel()

	firstPage := make([]string, 0, sochainPageSize)
	for i := 0; i < sochainPageSize; i++ {
		firstPage = append(firstPage, sochainRow(
			fmt.Sprintf("tx%03d", i), 0, "0.0001", 1,
		))
	}

	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls = append(calls, r.URL.Path)
			mu.Unlock()

			switch r.URL.Path {
			case "/get_tx_unspent/BTC/addr":
				fmt.Fprint(w, sochainPage(firstPage...))

			case "/get_tx_unspent/BTC/addr/tx099":
				fmt.Fprint(w, sochainPage(
					sochainRow("last", 2, "1", 1),
				))

			default:
				http.NotFound(w, r)
			}
		},
	))
	t.Cleanup(srv.Close)

	client := NewSochainClient(srv.URL, "BTC", srv.Client())

	utxos, err := client.UnspentOutputs(context.Background(), "addr")
	require.NoError(t, err)
	require.Len(t, utxos, sochainPageSize+1)
	require.Equal(t, "tx000", utxos[0].Hash)
	require.Equal(t, "last", utxos[sochainPageSize].Hash)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
}

// TestSochainRawTxAndBalance checks the get_tx and get_address_balance
// queries.
func TestSochainRawTxAndBalance(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/get_tx/LTC/abcd":
				fmt.Fprint(w, `{"status":"success","data":`+
					`{"txid":"abcd","tx_hex":"0100"}}`)

			case "/get_address_balance/LTC/addr":
				fmt.Fprint(w, `{"status":"success","data":`+
					`{"confirmed_balance":"1.25000000",`+
					`"unconfirmed_balance":"-0.00000100"}}`)

			default:
				http.NotFound(w, r)
			}
		},
	))
	t.Cleanup(srv.Close)

	client := NewSochainClient(srv.URL, "LTC", srv.Client())

	txHex, err := client.RawTransactionHex(context.Background(), "abcd")
	require.NoError(t, err)
	require.Equal(t, "0100", txHex)

	balance, err := client.AddressBalance(context.Background(), "addr")
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(125_000_000), balance.Confirmed)
	require.Equal(t, btcutil.Amount(-100), balance.Unconfirmed)

	// Unknown transactions surface the HTTP failure.
	_, err = client.RawTransactionHex(context.Background(), "ffff")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

// TestSochainFailures checks that malformed replies are reported as invalid
// responses.
func TestSochainFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		reply string
	}{
		{
			name:  "fail status",
			reply: `{"status":"fail","data":{"network":"invalid"}}`,
		},
		{
			name:  "not json",
			reply: `<html>rate limited</html>`,
		},
		{
			name:  "bad amount",
			reply: sochainPage(sochainRow("aa", 0, "abc", 1)),
		},
		{
			name:  "sub-satoshi amount",
			reply: sochainPage(sochainRow("aa", 0, "0.000000001", 1)),
		},
		{
			name: "bad script",
			reply: `{"status":"success","data":{"txs":[{"txid":"aa",` +
				`"output_no":0,"script_hex":"zz","value":"1",` +
				`"confirmations":1}]}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					fmt.Fprint(w, tc.reply)
				},
			))
			t.Cleanup(srv.Close)

			client := NewSochainClient(srv.URL, "BTC", srv.Client())

			_, err := client.UnspentOutputs(
				context.Background(), "addr",
			)
			require.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}
