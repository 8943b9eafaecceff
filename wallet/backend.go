package wallet

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/netparams"
)

// Names of the indexers that can be listed in BackendConfig.Indexers.
const (
	IndexerSochain = "sochain"
	IndexerHaskoin = "haskoin"
	IndexerEsplora = "esplora"
)

// ErrUnknownIndexer is returned for an indexer name that is not supported or
// has no endpoint on the selected network.
var ErrUnknownIndexer = errors.New("unknown indexer")

// Backend bundles the remote services a client uses on one network.
type Backend struct {
	// Indexers are queried in order for UTXOs and balances.
	Indexers []chain.Indexer

	// Broadcaster submits signed transactions.
	Broadcaster chain.Broadcaster

	// FeeEstimator provides live fee rates. When nil the default rates
	// are used.
	FeeEstimator chain.FeeEstimator

	// stop releases the resources of the services, if any.
	stop func()
}

// Stop releases the resources held by the backend services.
func (b *Backend) Stop() {
	if b.stop != nil {
		b.stop()
	}
}

// BackendFactory builds the backend of a network. It is called on client
// creation and on every network switch.
type BackendFactory func(params *netparams.Params) (*Backend, error)

// BackendConfig configures the public services used by the default backend.
// Empty fields fall back to the defaults of the selected network.
type BackendConfig struct {
	// SochainURL is the base URL of the sochain v2 API.
	SochainURL string

	// HaskoinURL is the haskoin endpoint, including the network segment.
	HaskoinURL string

	// EsploraURL is the esplora REST endpoint.
	EsploraURL string

	// Node configures a JSON-RPC node used to broadcast. A node is used
	// when a host is set here or by the network defaults.
	Node chain.NodeClientConfig

	// Indexers overrides the indexer order of the network.
	Indexers []string

	// HTTPClient is used by the REST services. A client with
	// chain.DefaultHTTPTimeout is used when nil.
	HTTPClient *http.Client
}

// Factory returns a BackendFactory building the services of cfg.
func (cfg BackendConfig) Factory() BackendFactory {
	return func(params *netparams.Params) (*Backend, error) {
		return cfg.newBackend(params)
	}
}

// newBackend builds the indexers, the broadcaster and the fee estimator of
// the network described by params.
func (cfg BackendConfig) newBackend(params *netparams.Params) (*Backend,
	error) {

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: chain.DefaultHTTPTimeout}
	}

	sochainURL := valueOr(cfg.SochainURL, netparams.DefaultSochainURL)
	haskoinURL := valueOr(cfg.HaskoinURL, params.HaskoinURL)
	esploraURL := valueOr(cfg.EsploraURL, params.EsploraURL)

	esplora := chain.NewEsploraClient(esploraURL, params.Params, httpClient)

	names := cfg.Indexers
	if len(names) == 0 {
		names = params.Indexers
	}

	indexers := make([]chain.Indexer, 0, len(names))
	for _, name := range names {
		switch name {
		case IndexerSochain:
			indexers = append(indexers, chain.NewSochainClient(
				sochainURL, params.SochainNetwork, httpClient,
			))

		case IndexerHaskoin:
			if haskoinURL == "" {
				return nil, fmt.Errorf("%w: haskoin does not "+
					"index %v", ErrUnknownIndexer, params)
			}

			indexers = append(indexers, chain.NewHaskoinClient(
				haskoinURL, httpClient,
			))

		case IndexerEsplora:
			indexers = append(indexers, esplora)

		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownIndexer, name)
		}
	}

	backend := &Backend{
		Indexers:     indexers,
		Broadcaster:  esplora,
		FeeEstimator: esplora,
	}

	nodeCfg := cfg.Node
	nodeCfg.Host = valueOr(nodeCfg.Host, params.NodeURL)
	if nodeCfg.Host == "" {
		return backend, nil
	}

	node, err := chain.NewNodeClientWithConfig(&nodeCfg)
	if err != nil {
		return nil, fmt.Errorf("node backend of %v: %w", params, err)
	}

	log.Debugf("Broadcasting %v transactions through node %s", params,
		nodeCfg.Host)

	backend.Broadcaster = node
	backend.FeeEstimator = chain.FeeEstimators{node, esplora}
	backend.stop = node.Stop

	return backend, nil
}

// valueOr returns value, or fallback when value is empty.
func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
