package wallet

import (
	"fmt"

	"github.com/xchain-go/xchain-utxo/netparams"
)

// LitecoinClient is the WalletClient of the litecoin chain. Haskoin does not
// index litecoin, so its default backend scans sochain then esplora, and
// transactions are broadcast through a litecoind JSON-RPC node.
type LitecoinClient struct {
	*utxoClient
}

// A compile time check to ensure LitecoinClient implements the interface.
var _ WalletClient = (*LitecoinClient)(nil)

// NewLitecoinClient creates a litecoin client on cfg.Network.
func NewLitecoinClient(cfg ClientConfig) (*LitecoinClient, error) {
	client, err := newUTXOClient(netparams.Litecoin, cfg)
	if err != nil {
		return nil, err
	}

	return &LitecoinClient{utxoClient: client}, nil
}

// NewClient creates the client of the given chain.
func NewClient(chainName netparams.Chain,
	cfg ClientConfig) (WalletClient, error) {

	switch chainName {
	case netparams.Bitcoin:
		return NewBitcoinClient(cfg)

	case netparams.Litecoin:
		return NewLitecoinClient(cfg)

	default:
		return nil, fmt.Errorf("%w: %q", netparams.ErrUnknownChain,
			chainName)
	}
}
