package chain

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// A compile time check to ensure the mocks implement the interfaces.
var (
	_ Indexer      = (*mockIndexer)(nil)
	_ FeeEstimator = (*mockFeeEstimator)(nil)
)

// mockIndexer is a mock implementation of the Indexer interface for use in
// tests.
type mockIndexer struct {
	mock.Mock

	name string
}

// newMockIndexer returns a mock indexer with the given name.
func newMockIndexer(name string) *mockIndexer {
	return &mockIndexer{name: name}
}

func (m *mockIndexer) Name() string {
	return m.name
}

func (m *mockIndexer) UnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]UTXO), args.Error(1)
}

func (m *mockIndexer) ConfirmedUnspentOutputs(ctx context.Context,
	address string) ([]UTXO, error) {

	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]UTXO), args.Error(1)
}

func (m *mockIndexer) RawTransactionHex(ctx context.Context,
	txid string) (string, error) {

	args := m.Called(ctx, txid)
	return args.String(0), args.Error(1)
}

func (m *mockIndexer) AddressBalance(ctx context.Context,
	address string) (Balance, error) {

	args := m.Called(ctx, address)
	return args.Get(0).(Balance), args.Error(1)
}

// mockFeeEstimator is a mock implementation of the FeeEstimator interface.
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
