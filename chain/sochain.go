package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
)

const (
	// sochainPageSize is the number of rows sochain returns per page of
	// unspent outputs. A full page means more rows may follow.
	sochainPageSize = 100

	// sochainStatusSuccess is the status of a successful sochain reply.
	sochainStatusSuccess = "success"
)

// SochainClient queries the sochain v2 REST API.
type SochainClient struct {
	rest    restClient
	network string
}

// A compile time check to ensure SochainClient implements the interface.
var _ Indexer = (*SochainClient)(nil)

// NewSochainClient creates a client for the sochain API at baseURL, e.g.
// https://sochain.com/api/v2. The network is sochain's network code such as
// BTC, BTCTEST, LTC or LTCTEST.
func NewSochainClient(baseURL, network string,
	httpClient *http.Client) *SochainClient {

	return &SochainClient{
		rest:    newRestClient(baseURL, httpClient),
		network: network,
	}
}

// sochainReply is the envelope of every sochain response.
type sochainReply[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

// sochainUnspent is a single row of get_tx_unspent.
type sochainUnspent struct {
	TxID          string `json:"txid"`
	OutputNo      uint32 `json:"output_no"`
	ScriptHex     string `json:"script_hex"`
	Value         string `json:"value"`
	Confirmations int64  `json:"confirmations"`
}

// sochainUnspentPage is the data of get_tx_unspent.
type sochainUnspentPage struct {
	Network string           `json:"network"`
	Address string           `json:"address"`
	Txs     []sochainUnspent `json:"txs"`
}

// sochainTx is the data of get_tx.
type sochainTx struct {
	TxID  string `json:"txid"`
	TxHex string `json:"tx_hex"`
}

// sochainBalance is the data of get_address_balance.
type sochainBalance struct {
	ConfirmedBalance   string `json:"confirmed_balance"`
	UnconfirmedBalance string `json:"unconfirmed_balance"`
}

// Name returns the name of the service.
func (c *SochainClient) Name() string {
	return "sochain"
}

// sochainGet fetches path and checks the reply status.
func sochainGet[T any](ctx context.Context, c *SochainClient,
	path string) (T, error) {

	var reply sochainReply[T]
	if err := c.rest.getJSON(ctx, path, &reply); err != nil {
		return reply.Data, err
	}

	if reply.Status != sochainStatusSuccess {
		return reply.Data, fmt.Errorf("%w: sochain status %q for %s",
			ErrInvalidResponse, reply.Status, path)
	}

	return reply.Data, nil
}

// listUnspent walks every page of unspent outputs of address.
func (c *SochainClient) listUnspent(ctx context.Context,
	address string) ([]sochainUnspent, error) {

	var (
		rows      []sochainUnspent
		afterTxID string
	)
	for {
		path := fmt.Sprintf("/get_tx_unspent/%s/%s", c.network,
			url.PathEscape(address))
		if afterTxID != "" {
			path += "/" + url.PathEscape(afterTxID)
		}

		page, err := sochainGet[sochainUnspentPage](ctx, c, path)
		if err != nil {
			return nil, err
		}

		rows = append(rows, page.Txs...)

		if len(page.Txs) < sochainPageSize {
			return rows, nil
		}

		afterTxID = page.Txs[len(page.Txs)-1].TxID
	}
}

// toUTXOs converts sochain rows, optionally dropping unconfirmed ones.
func (c *SochainClient) toUTXOs(rows []sochainUnspent,
	confirmedOnly bool) ([]UTXO, error) {

	utxos := make([]UTXO, 0, len(rows))
	for _, row := range rows {
		if confirmedOnly && row.Confirmations < 1 {
			continue
		}

		value, err := parseCoinAmount(row.Value)
		if err != nil {
			return nil, err
		}

		script, err := hex.DecodeString(row.ScriptHex)
		if err != nil {
			return nil, fmt.Errorf("%w: script of %s:%d: %v",
				ErrInvalidResponse, row.TxID, row.OutputNo, err)
		}

		utxos = append(utxos, UTXO{
			Hash:          row.TxID,
			Index:         row.OutputNo,
			Value:         value,
			WitnessScript: script,
		})
	}

	return utxos, nil
}

// UnspentOutputs returns every unspent output of the address.
func (c *SochainClient) UnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	rows, err := c.listUnspent(ctx, address)
	if err != nil {
		return nil, err
	}

	return c.toUTXOs(rows, false)
}

// ConfirmedUnspentOutputs returns the unspent outputs of the address with at
// least one confirmation.
func (c *SochainClient) ConfirmedUnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	rows, err := c.listUnspent(ctx, address)
	if err != nil {
		return nil, err
	}

	return c.toUTXOs(rows, true)
}

// RawTransactionHex returns the hex encoded transaction.
func (c *SochainClient) RawTransactionHex(ctx context.Context,
	txid string) (string, error) {

	path := fmt.Sprintf("/get_tx/%s/%s", c.network, url.PathEscape(txid))

	tx, err := sochainGet[sochainTx](ctx, c, path)
	if err != nil {
		return "", err
	}

	if tx.TxHex == "" {
		return "", fmt.Errorf("%w: empty tx_hex for %s",
			ErrInvalidResponse, txid)
	}

	return tx.TxHex, nil
}

// AddressBalance returns the balance of the address.
func (c *SochainClient) AddressBalance(ctx context.Context,
	address string) (Balance, error) {

	path := fmt.Sprintf("/get_address_balance/%s/%s", c.network,
		url.PathEscape(address))

	data, err := sochainGet[sochainBalance](ctx, c, path)
	if err != nil {
		return Balance{}, err
	}

	confirmed, err := parseCoinAmount(data.ConfirmedBalance)
	if err != nil {
		return Balance{}, err
	}

	unconfirmed, err := parseCoinAmount(data.UnconfirmedBalance)
	if err != nil {
		return Balance{}, err
	}

	return Balance{Confirmed: confirmed, Unconfirmed: unconfirmed}, nil
}
