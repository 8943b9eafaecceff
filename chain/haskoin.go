package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"

	"github.com/btcsuite/btcd/btcutil"
)

// HaskoinClient queries a haskoin store REST API.
type HaskoinClient struct {
	rest restClient
}

// A compile time check to ensure HaskoinClient implements the interface.
var _ Indexer = (*HaskoinClient)(nil)

// NewHaskoinClient creates a client for the haskoin API at baseURL. The URL
// includes the network segment, e.g. https://api.haskoin.com/btc.
func NewHaskoinClient(baseURL string, httpClient *http.Client) *HaskoinClient {
	return &HaskoinClient{
		rest: newRestClient(baseURL, httpClient),
	}
}

// haskoinBlock is the block reference of an unspent output. Height is nil
// for outputs of mempool transactions.
type haskoinBlock struct {
	Height  *int64 `json:"height"`
	Mempool *int64 `json:"mempool"`
}

// haskoinUnspent is a single row of the unspent endpoint.
type haskoinUnspent struct {
	TxID     string       `json:"txid"`
	Index    uint32       `json:"index"`
	PkScript string       `json:"pkscript"`
	Value    int64        `json:"value"`
	Block    haskoinBlock `json:"block"`
}

// haskoinRawTx is the reply of the raw transaction endpoint.
type haskoinRawTx struct {
	Result string `json:"result"`
}

// haskoinBalance is the reply of the balance endpoint.
type haskoinBalance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// Name returns the name of the service.
func (c *HaskoinClient) Name() string {
	return "haskoin"
}

// listUnspent fetches the unspent outputs of address.
func (c *HaskoinClient) listUnspent(ctx context.Context, address string,
	confirmedOnly bool) ([]UTXO, error) {

	var rows []haskoinUnspent

	path := fmt.Sprintf("/address/%s/unspent", url.PathEscape(address))
	if err := c.rest.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}

	utxos := make([]UTXO, 0, len(rows))
	for _, row := range rows {
		if confirmedOnly && row.Block.Height == nil {
			continue
		}

		script, err := hex.DecodeString(row.PkScript)
		if err != nil {
			return nil, fmt.Errorf("%w: script of %s:%d: %v",
				ErrInvalidResponse, row.TxID, row.Index, err)
		}

		utxos = append(utxos, UTXO{
			Hash:          row.TxID,
			Index:         row.Index,
			Value:         btcutil.Amount(row.Value),
			WitnessScript: script,
		})
	}

	return utxos, nil
}

// UnspentOutputs returns every unspent output of the address.
func (c *HaskoinClient) UnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	return c.listUnspent(ctx, address, false)
}

// ConfirmedUnspentOutputs returns the unspent outputs of the address that
// belong to a block.
func (c *HaskoinClient) ConfirmedUnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	return c.listUnspent(ctx, address, true)
}

// RawTransactionHex returns the hex encoded transaction.
func (c *HaskoinClient) RawTransactionHex(ctx context.Context,
	txid string) (string, error) {

	var reply haskoinRawTx

	path := fmt.Sprintf("/transaction/%s/raw", url.PathEscape(txid))
	if err := c.rest.getJSON(ctx, path, &reply); err != nil {
		return "", err
	}

	if reply.Result == "" {
		return "", fmt.Errorf("%w: empty raw tx for %s",
			ErrInvalidResponse, txid)
	}

	return reply.Result, nil
}

// AddressBalance returns the balance of the address.
func (c *HaskoinClient) AddressBalance(ctx context.Context,
	address string) (Balance, error) {

	var reply haskoinBalance

	path := fmt.Sprintf("/address/%s/balance", url.PathEscape(address))
	if err := c.rest.getJSON(ctx, path, &reply); err != nil {
		return Balance{}, err
	}

	return Balance{
		Confirmed:   btcutil.Amount(reply.Confirmed),
		Unconfirmed: btcutil.Amount(reply.Unconfirmed),
	}, nil
}
