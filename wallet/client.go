package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/netparams"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// ErrMissingBackend is returned when a client is created without a backend
// factory.
var ErrMissingBackend = errors.New("missing backend factory")

// WalletClient is the capability set shared by the UTXO chain clients.
type WalletClient interface {
	// Address returns the P2WPKH address of the wallet index.
	Address(walletIndex uint32) (string, error)

	// ValidateAddress returns true if address is valid on the current
	// network.
	ValidateAddress(address string) bool

	// Balance returns the balance of an address.
	Balance(ctx context.Context, address string) (chain.Balance, error)

	// BuildTransaction creates the unsigned transaction of a transfer.
	BuildTransaction(ctx context.Context,
		params TransferParams) (*AuthoredTx, error)

	// Transfer builds, signs and broadcasts a transfer, returning the
	// txid.
	Transfer(ctx context.Context, params TransferParams) (string, error)

	// Broadcast submits a hex encoded signed transaction.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)

	// FeesWithRates returns the current fee rates and their quotes.
	FeesWithRates(ctx context.Context) FeesWithRates

	// Fees returns the current fee quotes.
	Fees(ctx context.Context) Fees

	// SetNetwork switches the client to another network.
	SetNetwork(network netparams.Network) error

	// Network returns the current network.
	Network() netparams.Network

	// ExplorerURL returns the block explorer of the current network.
	ExplorerURL() string

	// ExplorerAddressURL returns the explorer link of an address.
	ExplorerAddressURL(address string) string

	// ExplorerTxURL returns the explorer link of a transaction.
	ExplorerTxURL(txid string) string

	// Stop releases the resources of the backend services.
	Stop()
}

// ClientConfig configures a chain client.
type ClientConfig struct {
	// Network is the initial network.
	Network netparams.Network

	// Seed is the BIP-0032 seed the wallet keys are derived from.
	Seed []byte

	// NewBackend builds the remote services of a network. The default
	// public services are used when nil.
	NewBackend BackendFactory

	// KeyCacheSize is the number of derived keys kept in memory.
	// DefaultKeyCacheSize is used when zero.
	KeyCacheSize uint64

	// HexFetchLimit bounds the concurrent raw transaction lookups of a
	// scan. chain.DefaultHexFetchLimit is used when zero.
	HexFetchLimit int
}

// TransferParams describes a payment from one of the wallet's addresses.
type TransferParams struct {
	// WalletIndex selects the sending address.
	WalletIndex uint32

	// Amount is the value paid to the recipient.
	Amount btcutil.Amount

	// Recipient is the address paid.
	Recipient string

	// Memo is an optional OP_RETURN memo.
	Memo string

	// FeeRate is an explicit rate. When unset the rate of FeeOption is
	// used.
	FeeRate fn.Option[btcunit.SatPerByte]

	// FeeOption selects the current rate when FeeRate is unset. FeeFast
	// is used when empty.
	FeeOption FeeOption

	// SpendPending allows unconfirmed UTXOs to be spent.
	SpendPending bool

	// FetchTxHex attaches the source transactions to the inputs.
	FetchTxHex bool

	// ChangeDustThreshold overrides the smallest change output.
	ChangeDustThreshold fn.Option[btcutil.Amount]
}

// networkState holds everything bound to the current network. It is
// replaced as a whole on a network switch.
type networkState struct {
	params    *netparams.Params
	backend   *Backend
	repo      *chain.Repository
	builder   *TxBuilder
	publisher *Publisher
	fees      feeQuoter
}

// utxoClient implements WalletClient for one chain. The chain clients wrap
// it and only differ in their chain.
//
// It is the shared pipeline that each chain client composes, not a base type.
// Nothing overrides it.
type utxoClient struct {
	chain netparams.Chain
	cfg   ClientConfig
	keys  *keyRing

	mu    sync.RWMutex
	state *networkState
}

// newUTXOClient creates a client for chainName on cfg.Network.
func newUTXOClient(chainName netparams.Chain,
	cfg ClientConfig) (*utxoClient, error) {

	if cfg.NewBackend == nil {
		cfg.NewBackend = BackendConfig{}.Factory()
	}

	keys, err := newKeyRing(cfg.Seed, cfg.KeyCacheSize)
	if err != nil {
		return nil, err
	}

	client := &utxoClient{
		chain: chainName,
		cfg:   cfg,
		keys:  keys,
	}

	state, err := client.newState(cfg.Network)
	if err != nil {
		return nil, err
	}
	client.state = state

	return client, nil
}

// newState builds the network bound state of network.
func (c *utxoClient) newState(network netparams.Network) (*networkState,
	error) {

	params, err := netparams.Lookup(c.chain, network)
	if err != nil {
		return nil, err
	}

	backend, err := c.cfg.NewBackend(params)
	if err != nil {
		return nil, fmt.Errorf("backend of %v: %w", params, err)
	}
	if backend == nil || backend.Broadcaster == nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingBackend, params)
	}

	var repoOpts []chain.RepositoryOption
	if c.cfg.HexFetchLimit > 0 {
		repoOpts = append(
			repoOpts, chain.WithHexFetchLimit(c.cfg.HexFetchLimit),
		)
	}

	repo, err := chain.NewRepository(backend.Indexers, repoOpts...)
	if err != nil {
		backend.Stop()
		return nil, fmt.Errorf("repository of %v: %w", params, err)
	}

	log.Infof("Using %v with indexers %v", params, repo.Indexers())

	return &networkState{
		params:    params,
		backend:   backend,
		repo:      repo,
		builder:   NewTxBuilder(params, repo),
		publisher: NewPublisher(backend.Broadcaster),
		fees:      feeQuoter{estimator: backend.FeeEstimator},
	}, nil
}

// current returns the network bound state.
func (c *utxoClient) current() *networkState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// SetNetwork switches the client to network. The derived key cache is
// dropped and the previous backend stopped.
func (c *utxoClient) SetNetwork(network netparams.Network) error {
	state, err := c.newState(network)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.state
	c.state = state
	c.keys.reset()
	c.mu.Unlock()

	old.backend.Stop()

	log.Infof("Switched from %v to %v", old.params, state.params)

	return nil
}

// Network returns the current network.
func (c *utxoClient) Network() netparams.Network {
	return c.current().params.Network
}

// Address returns the P2WPKH address of the wallet index.
func (c *utxoClient) Address(walletIndex uint32) (string, error) {
	key, err := c.keys.key(c.current().params, walletIndex)
	if err != nil {
		return "", err
	}

	return key.address.EncodeAddress(), nil
}

// ValidateAddress returns true if address is valid on the current network.
func (c *utxoClient) ValidateAddress(address string) bool {
	return c.current().params.ValidateAddress(address)
}

// Balance returns the balance of address.
func (c *utxoClient) Balance(ctx context.Context,
	address string) (chain.Balance, error) {

	state := c.current()
	if !state.params.ValidateAddress(address) {
		return chain.Balance{}, fmt.Errorf("%w: %q", ErrInvalidAddress,
			address)
	}

	return state.repo.Balance(ctx, address)
}

// FeesWithRates returns the current fee rates and their quotes, or the
// defaults when no estimate is available.
func (c *utxoClient) FeesWithRates(ctx context.Context) FeesWithRates {
	return c.current().fees.feesWithRates(ctx)
}

// Fees returns the current fee quotes.
func (c *utxoClient) Fees(ctx context.Context) Fees {
	return c.FeesWithRates(ctx).Fees
}

// feeRate resolves the rate of a transfer.
func (c *utxoClient) feeRate(ctx context.Context, state *networkState,
	params TransferParams) (btcunit.SatPerByte, error) {

	if params.FeeRate.IsSome() {
		return params.FeeRate.UnwrapOr(btcunit.ZeroSatPerByte), nil
	}

	option := params.FeeOption
	if option == "" {
		option = FeeFast
	}

	return state.fees.feesWithRates(ctx).Rates.Rate(option)
}

// buildTransaction creates the unsigned transaction of a transfer along with
// the key of the sending address.
func (c *utxoClient) buildTransaction(ctx context.Context,
	state *networkState, params TransferParams) (*AuthoredTx, *derivedKey,
	error) {

	key, err := c.keys.key(state.params, params.WalletIndex)
	if err != nil {
		return nil, nil, err
	}

	rate, err := c.feeRate(ctx, state, params)
	if err != nil {
		return nil, nil, err
	}

	authored, err := state.builder.CreateTransaction(ctx, &TxIntent{
		Amount:              params.Amount,
		Recipient:           params.Recipient,
		Memo:                params.Memo,
		FeeRate:             rate,
		Sender:              key.address.EncodeAddress(),
		SpendPending:        params.SpendPending,
		FetchTxHex:          params.FetchTxHex,
		ChangeDustThreshold: params.ChangeDustThreshold,
	})
	if err != nil {
		return nil, nil, err
	}

	return authored, key, nil
}

// BuildTransaction creates the unsigned transaction of a transfer.
func (c *utxoClient) BuildTransaction(ctx context.Context,
	params TransferParams) (*AuthoredTx, error) {

	authored, _, err := c.buildTransaction(ctx, c.current(), params)

	return authored, err
}

// Transfer builds, signs and broadcasts a transfer and returns its txid.
func (c *utxoClient) Transfer(ctx context.Context,
	params TransferParams) (string, error) {

	state := c.current()

	authored, key, err := c.buildTransaction(ctx, state, params)
	if err != nil {
		return "", err
	}

	tx, err := SignPacket(authored.Packet, key.privKey)
	if err != nil {
		return "", err
	}

	return state.publisher.PublishTx(ctx, tx)
}

// Broadcast submits a hex encoded signed transaction.
func (c *utxoClient) Broadcast(ctx context.Context,
	rawTxHex string) (string, error) {

	return c.current().publisher.Broadcast(ctx, rawTxHex)
}

// ExplorerURL returns the block explorer of the current network.
func (c *utxoClient) ExplorerURL() string {
	return c.current().params.ExplorerURL()
}

// ExplorerAddressURL returns the explorer link of an address.
func (c *utxoClient) ExplorerAddressURL(address string) string {
	return c.current().params.ExplorerAddressURL(address)
}

// ExplorerTxURL returns the explorer link of a transaction.
func (c *utxoClient) ExplorerTxURL(txid string) string {
	return c.current().params.ExplorerTxURL(txid)
}

// Stop releases the resources of the backend services.
func (c *utxoClient) Stop() {
	c.current().backend.Stop()
}
