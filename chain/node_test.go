package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// rpcRequest is the subset of a JSON-RPC request the fake node inspects.
type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

// newFakeNode starts a JSON-RPC server that answers with the result or error
// returned by handle.
func newFakeNode(t *testing.T,
	handle func(req rpcRequest) (any, *rpcErrorReply)) *httptest.Server {

	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			var req rpcRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			result, rpcErr := handle(req)
			reply := map[string]any{
				"result": result,
				"error":  rpcErr,
				"id":     req.ID,
			}
			if rpcErr != nil {
				reply["result"] = nil
			}

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(reply)
		},
	))
	t.Cleanup(srv.Close)

	return srv
}

// rpcErrorReply is the error object of a JSON-RPC reply.
type rpcErrorReply struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newTestNodeClient connects a NodeClient to the fake node.
func newTestNodeClient(t *testing.T, srv *httptest.Server,
	targets ...uint32) *NodeClient {

	t.Helper()

	client, err := NewNodeClientWithConfig(&NodeClientConfig{
		Host:       srv.URL,
		User:       "user",
		Pass:       "pass",
		FeeTargets: targets,
	})
	require.NoError(t, err)
	t.Cleanup(client.Stop)

	return client
}

// TestNodeClientConfig checks the config validation and the mapping of the
// host scheme onto the TLS setting.
func TestNodeClientConfig(t *testing.T) {
	t.Parallel()

	_, err := NewNodeClientWithConfig(nil)
	require.ErrorIs(t, err, errMissingNodeConfig)

	_, err = NewNodeClientWithConfig(&NodeClientConfig{Host: " "})
	require.ErrorIs(t, err, errMissingNodeHost)

	testCases := []struct {
		host       string
		wantHost   string
		disableTLS bool
	}{
		{
			host:       "localhost:9332",
			wantHost:   "localhost:9332",
			disableTLS: true,
		},
		{
			host:       "http://127.0.0.1:9332/",
			wantHost:   "127.0.0.1:9332",
			disableTLS: true,
		},
		{
			host:       "https://ltc.thorchain.info",
			wantHost:   "ltc.thorchain.info",
			disableTLS: false,
		},
	}

	for _, tc := range testCases {
		cfg := &NodeClientConfig{Host: tc.host}
		conn := cfg.connConfig()

		require.Equal(t, tc.wantHost, conn.Host, tc.host)
		require.Equal(t, tc.disableTLS, conn.DisableTLS, tc.host)
		require.True(t, conn.HTTPPostMode)
	}
}

// TestNodeBroadcast checks that an accepted transaction returns the node's
// txid and that a rejection carries the node's message.
func TestNodeBroadcast(t *testing.T) {
	t.Parallel()

	srv := newFakeNode(t, func(req rpcRequest) (any, *rpcErrorReply) {
		if req.Method != "sendrawtransaction" || len(req.Params) != 1 {
			return nil, &rpcErrorReply{
				Code: -32601, Message: "Method not found",
			}
		}

		var rawTx string
		if err := json.Unmarshal(req.Params[0], &rawTx); err != nil {
			return nil, &rpcErrorReply{Code: -22, Message: err.Error()}
		}

		if rawTx == "deadbeef" {
			return nil, &rpcErrorReply{
				Code:    -26,
				Message: "min relay fee not met",
			}
		}

		return testTxID, nil
	})

	client := newTestNodeClient(t, srv)

	txid, err := client.Broadcast(context.Background(), "0200")
	require.NoError(t, err)
	require.Equal(t, testTxID, txid)

	_, err = client.Broadcast(context.Background(), "deadbeef")
	require.ErrorIs(t, err, ErrBroadcastFailed)
	require.Contains(t, err.Error(), "min relay fee not met")
}

// TestNodeFeeEstimates checks the conversion from coins per kilobyte and that
// targets without an estimate are skipped.
func TestNodeFeeEstimates(t *testing.T) {
	t.Parallel()

	srv := newFakeNode(t, func(req rpcRequest) (any, *rpcErrorReply) {
		if req.Method != "estimatesmartfee" {
			return nil, &rpcErrorReply{
				Code: -32601, Message: "Method not found",
			}
		}

		var target int64
		if err := json.Unmarshal(req.Params[0], &target); err != nil {
			return nil, &rpcErrorReply{Code: -8, Message: err.Error()}
		}

		switch target {
		case 1:
			return map[string]any{"feerate": 0.0002, "blocks": 2}, nil

		case 3:
			return map[string]any{"feerate": 0.0001, "blocks": 3}, nil

		default:
			return map[string]any{
				"errors": []string{"Insufficient data"},
				"blocks": 0,
			}, nil
		}
	})

	client := newTestNodeClient(t, srv, 1, 3, 6)

	estimates, err := client.FeeEstimates(context.Background())
	require.NoError(t, err)
	require.Len(t, estimates, 2)
	require.True(t, btcunit.NewSatPerByte(20).Equal(estimates[1]),
		fmt.Sprintf("got %v", estimates[1]))
	require.True(t, btcunit.NewSatPerByte(10).Equal(estimates[3]),
		fmt.Sprintf("got %v", estimates[3]))

	// A node without any estimate is an error.
	empty := newTestNodeClient(t, srv, 6)
	_, err = empty.FeeEstimates(context.Background())
	require.ErrorIs(t, err, ErrInvalidResponse)
}

// TestNodeCancelledContext checks that a cancelled context fails the node
// calls without a request reaching the node.
func TestNodeCancelledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newFakeNode(t, func(req rpcRequest) (any, *rpcErrorReply) {
		calls.Add(1)
		return testTxID, nil
	})

	client := newTestNodeClient(t, srv, 1, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Broadcast(ctx, "0200")
	require.ErrorIs(t, err, context.Canceled)

	_, err = client.FeeEstimates(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, calls.Load())
}
