package wallet

import (
	"github.com/xchain-go/xchain-utxo/netparams"
)

// BitcoinClient is the WalletClient of the bitcoin chain. Its default
// backend scans sochain, then haskoin, then esplora and broadcasts through
// esplora.
type BitcoinClient struct {
	*utxoClient
}

// A compile time check to ensure BitcoinClient implements the interface.
var _ WalletClient = (*BitcoinClient)(nil)

// NewBitcoinClient creates a bitcoin client on cfg.Network.
func NewBitcoinClient(cfg ClientConfig) (*BitcoinClient, error) {
	client, err := newUTXOClient(netparams.Bitcoin, cfg)
	if err != nil {
		return nil, err
	}

	return &BitcoinClient{utxoClient: client}, nil
}
