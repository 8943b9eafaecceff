// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

var (
	// errMissingNodeConfig is returned when no node config is supplied.
	errMissingNodeConfig = errors.New("missing node rpc config")

	// errMissingNodeHost is returned when the node config has no host.
	errMissingNodeHost = errors.New("missing node rpc host")
)

// DefaultFeeTargets are the confirmation targets queried from a node when
// building fee estimates.
var DefaultFeeTargets = []uint32{1, 3, 6}

// NodeClientConfig defines the config options used when initializing a
// NodeClient.
type NodeClientConfig struct {
	// Host is the address of the node's JSON-RPC server. A leading
	// http:// or https:// selects whether TLS is used; a bare host:port
	// uses plain HTTP.
	Host string

	// User and Pass are the RPC credentials, if the node requires any.
	User string
	Pass string

	// FeeTargets are the confirmation targets reported by FeeEstimates.
	// DefaultFeeTargets is used when empty.
	FeeTargets []uint32
}

// validate checks the required config options are set.
func (c *NodeClientConfig) validate() error {
	if c == nil {
		return errMissingNodeConfig
	}

	if strings.TrimSpace(c.Host) == "" {
		return errMissingNodeHost
	}

	return nil
}

// connConfig maps the config to the rpcclient connection options. The client
// runs in HTTP POST mode so no websocket is ever opened.
func (c *NodeClientConfig) connConfig() *rpcclient.ConnConfig {
	host := strings.TrimSpace(c.Host)
	disableTLS := true

	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
		disableTLS = false

	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}

	return &rpcclient.ConnConfig{
		Host:         strings.TrimRight(host, "/"),
		User:         c.User,
		Pass:         c.Pass,
		HTTPPostMode: true,
		DisableTLS:   disableTLS,
	}
}

// NodeClient talks to a bitcoind compatible JSON-RPC node. It is used to
// broadcast transactions and to query fee estimates on chains whose public
// indexers do not offer a broadcast endpoint.
type NodeClient struct {
	client     *rpcclient.Client
	feeTargets []uint32
}

// A compile time check to ensure NodeClient implements the interfaces.
var (
	_ Broadcaster  = (*NodeClient)(nil)
	_ FeeEstimator = (*NodeClient)(nil)
)

// NewNodeClientWithConfig creates a node client based on the config options
// supplied. No connection is made until the first request.
func NewNodeClientWithConfig(cfg *NodeClientConfig) (*NodeClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := rpcclient.New(cfg.connConfig(), nil)
	if err != nil {
		return nil, fmt.Errorf("create rpc client: %w", err)
	}

	feeTargets := cfg.FeeTargets
	if len(feeTargets) == 0 {
		feeTargets = DefaultFeeTargets
	}

	return &NodeClient{
		client:     client,
		feeTargets: feeTargets,
	}, nil
}

// Broadcast submits the raw transaction via sendrawtransaction. The request is
// sent raw so that no backend version detection is needed, which keeps the
// client usable against litecoind and other bitcoind forks.
//
// rpcclient calls take no context, so ctx is only checked before the request
// is issued. An in-flight request is bounded by the rpc client's own timeout.
func (c *NodeClient) Broadcast(ctx context.Context,
	rawTxHex string) (string, error) {

	if err := ctx.Err(); err != nil {
		return "", err
	}

	param, err := json.Marshal(rawTxHex)
	if err != nil {
		return "", fmt.Errorf("encode raw tx: %w", err)
	}

	reply, err := c.client.RawRequest(
		"sendrawtransaction", []json.RawMessage{param},
	)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) {
			return "", fmt.Errorf("%w: %s", ErrBroadcastFailed,
				rpcErr.Message)
		}

		return "", fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}

	var txid string
	if err := json.Unmarshal(reply, &txid); err != nil {
		return "", fmt.Errorf("%w: sendrawtransaction reply: %v",
			ErrInvalidResponse, err)
	}

	if _, err := chainhash.NewHashFromStr(txid); err != nil {
		return "", fmt.Errorf("%w: unexpected txid %q",
			ErrInvalidResponse, txid)
	}

	log.Debugf("Node accepted tx %v", txid)

	return txid, nil
}

// FeeEstimates queries estimatesmartfee for each configured target. Targets
// the node cannot estimate yet are left out of the result. ctx is checked
// between the per target requests.
func (c *NodeClient) FeeEstimates(
	ctx context.Context) (map[uint32]btcunit.SatPerByte, error) {

	estimates := make(map[uint32]btcunit.SatPerByte, len(c.feeTargets))
	for _, target := range c.feeTargets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.client.EstimateSmartFee(int64(target), nil)
		if err != nil {
			return nil, fmt.Errorf("estimatesmartfee %d: %w", target,
				err)
		}

		if result.FeeRate == nil {
			log.Debugf("Node has no fee estimate for target %d: %v",
				target, result.Errors)

			continue
		}

		// The node reports the rate in coins per kilobyte.
		perKB, err := btcutil.NewAmount(*result.FeeRate)
		if err != nil {
			return nil, fmt.Errorf("%w: fee rate %v: %v",
				ErrInvalidResponse, *result.FeeRate, err)
		}

		estimates[target] = btcunit.NewSatPerKByte(perKB).ToSatPerByte()
	}

	if len(estimates) == 0 {
		return nil, fmt.Errorf("%w: node returned no fee estimates",
			ErrInvalidResponse)
	}

	return estimates, nil
}

// Stop shuts down the underlying rpc client.
func (c *NodeClient) Stop() {
	c.client.Shutdown()
}
