package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// satsPerCoin is the number of satoshis in one whole coin as a rational.
var satsPerCoin = big.NewRat(btcutil.SatoshiPerBitcoin, 1)

// parseCoinAmount converts a decimal coin string such as "0.00100000" into an
// exact satoshi amount. Values with more than eight decimal places are
// rejected instead of being rounded.
func parseCoinAmount(value string) (btcutil.Amount, error) {
	value = strings.TrimSpace(value)

	coins, ok := new(big.Rat).SetString(value)
	if !ok {
		return 0, fmt.Errorf("%w: malformed amount %q",
			ErrInvalidResponse, value)
	}

	sats := coins.Mul(coins, satsPerCoin)
	if !sats.IsInt() {
		return 0, fmt.Errorf("%w: amount %q has sub-satoshi precision",
			ErrInvalidResponse, value)
	}

	if !sats.Num().IsInt64() {
		return 0, fmt.Errorf("%w: amount %q out of range",
			ErrInvalidResponse, value)
	}

	amount := btcutil.Amount(sats.Num().Int64())
	if amount < -btcutil.MaxSatoshi || amount > btcutil.MaxSatoshi {
		return 0, fmt.Errorf("%w: amount %q out of range",
			ErrInvalidResponse, value)
	}

	return amount, nil
}
