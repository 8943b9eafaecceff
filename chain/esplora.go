package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// EsploraClient queries an esplora REST API such as blockstream.info. Besides
// the indexer queries it can broadcast transactions and report fee
// estimates.
type EsploraClient struct {
	rest        restClient
	chainParams *chaincfg.Params
}

// A compile time check to ensure EsploraClient implements the interfaces.
var (
	_ Indexer      = (*EsploraClient)(nil)
	_ Broadcaster  = (*EsploraClient)(nil)
	_ FeeEstimator = (*EsploraClient)(nil)
)

// NewEsploraClient creates a client for the esplora API at baseURL, e.g.
// https://blockstream.info/testnet/api. Esplora does not report output
// scripts, so the chain params are used to derive them from the queried
// address.
func NewEsploraClient(baseURL string, chainParams *chaincfg.Params,
	httpClient *http.Client) *EsploraClient {

	return &EsploraClient{
		rest:        newRestClient(baseURL, httpClient),
		chainParams: chainParams,
	}
}

// esploraStatus is the confirmation status of an output.
type esploraStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

// esploraUnspent is a single row of the utxo endpoint.
type esploraUnspent struct {
	TxID   string        `json:"txid"`
	Vout   uint32        `json:"vout"`
	Value  int64         `json:"value"`
	Status esploraStatus `json:"status"`
}

// esploraStats holds the funded and spent sums of an address.
type esploraStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
}

// esploraAddress is the reply of the address endpoint.
type esploraAddress struct {
	ChainStats   esploraStats `json:"chain_stats"`
	MempoolStats esploraStats `json:"mempool_stats"`
}

// Name returns the name of the service.
func (c *EsploraClient) Name() string {
	return "esplora"
}

// listUnspent fetches the unspent outputs of address.
func (c *EsploraClient) listUnspent(ctx context.Context, address string,
	confirmedOnly bool) ([]UTXO, error) {

	addr, err := btcutil.DecodeAddress(address, c.chainParams)
	if err != nil {
		return nil, fmt.Errorf("decode address %s: %w", address, err)
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("script of %s: %w", address, err)
	}

	var rows []esploraUnspent

	path := fmt.Sprintf("/address/%s/utxo", url.PathEscape(address))
	if err := c.rest.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}

	utxos := make([]UTXO, 0, len(rows))
	for _, row := range rows {
		if confirmedOnly && !row.Status.Confirmed {
			continue
		}

		utxos = append(utxos, UTXO{
			Hash:          row.TxID,
			Index:         row.Vout,
			Value:         btcutil.Amount(row.Value),
			WitnessScript: script,
		})
	}

	return utxos, nil
}

// UnspentOutputs returns every unspent output of the address.
func (c *EsploraClient) UnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	return c.listUnspent(ctx, address, false)
}

// ConfirmedUnspentOutputs returns the unspent outputs of the address that
// are included in a block.
func (c *EsploraClient) ConfirmedUnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	return c.listUnspent(ctx, address, true)
}

// RawTransactionHex returns the hex encoded transaction.
func (c *EsploraClient) RawTransactionHex(ctx context.Context,
	txid string) (string, error) {

	txHex, err := c.rest.getText(
		ctx, fmt.Sprintf("/tx/%s/hex", url.PathEscape(txid)),
	)
	if err != nil {
		return "", err
	}

	if txHex == "" {
		return "", fmt.Errorf("%w: empty raw tx for %s",
			ErrInvalidResponse, txid)
	}

	return txHex, nil
}

// AddressBalance returns the balance of the address.
func (c *EsploraClient) AddressBalance(ctx context.Context,
	address string) (Balance, error) {

	var reply esploraAddress

	path := fmt.Sprintf("/address/%s", url.PathEscape(address))
	if err := c.rest.getJSON(ctx, path, &reply); err != nil {
		return Balance{}, err
	}

	mined, mempool := reply.ChainStats, reply.MempoolStats

	return Balance{
		Confirmed: btcutil.Amount(
			mined.FundedTxoSum - mined.SpentTxoSum,
		),
		Unconfirmed: btcutil.Amount(
			mempool.FundedTxoSum - mempool.SpentTxoSum,
		),
	}, nil
}

// Broadcast submits the raw transaction and returns its id.
func (c *EsploraClient) Broadcast(ctx context.Context,
	rawTxHex string) (string, error) {

	data, err := c.rest.do(
		ctx, http.MethodPost, "/tx", strings.NewReader(rawTxHex),
		"text/plain",
	)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			return "", fmt.Errorf("%w: %s", ErrBroadcastFailed,
				httpErr.Body)
		}

		return "", fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}

	txid := strings.TrimSpace(string(data))
	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return "", fmt.Errorf("%w: unexpected broadcast reply %q",
			ErrInvalidResponse, txid)
	}

	return txid, nil
}

// FeeEstimates returns the fee rate estimates in sat/b keyed by the
// confirmation target in blocks.
func (c *EsploraClient) FeeEstimates(
	ctx context.Context) (map[uint32]btcunit.SatPerByte, error) {

	var reply map[string]float64
	if err := c.rest.getJSON(ctx, "/fee-estimates", &reply); err != nil {
		return nil, err
	}

	estimates := make(map[uint32]btcunit.SatPerByte, len(reply))
	for target, rate := range reply {
		blocks, err := strconv.ParseUint(target, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: fee target %q",
				ErrInvalidResponse, target)
		}

		feeRate, err := btcunit.SatPerByteFromFloat(rate)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}

		estimates[uint32(blocks)] = feeRate
	}

	return estimates, nil
}
