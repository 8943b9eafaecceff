package wallet

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// A compile time check to ensure the mocks implement the interfaces.
var (
	_ UTXOScanner        = (*mockUTXOScanner)(nil)
	_ chain.Broadcaster  = (*mockBroadcaster)(nil)
	_ chain.FeeEstimator = (*mockFeeEstimator)(nil)
)

// mockUTXOScanner is a mock implementation of the UTXOScanner interface.
type mockUTXOScanner struct {
	mock.Mock
}

func (m *mockUTXOScanner) Scan(ctx context.Context, address string,
	confirmedOnly, fetchTxHex bool) ([]chain.UTXO, error) {

	args := m.Called(ctx, address, confirmedOnly, fetchTxHex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]chain.UTXO), args.Error(1)
}

// mockBroadcaster is a mock implementation of the chain.Broadcaster
// interface.
type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) Broadcast(ctx context.Context,
	rawTxHex string) (string, error) {

	args := m.Called(ctx, rawTxHex)
	return args.String(0), args.Error(1)
}

// mockFeeEstimator is a mock implementation of the chain.FeeEstimator
// interface.
type mockFeeEstimator struct {
	mock.Mock
}

func (m *mockFeeEstimator) FeeEstimates(
	ctx context.Context) (map[uint32]btcunit.SatPerByte, error) {

	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[uint32]btcunit.SatPerByte), args.Error(1)
}
