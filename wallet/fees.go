package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/xchain-go/xchain-utxo/chain"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
	"github.com/xchain-go/xchain-utxo/wallet/txrules"
	"github.com/xchain-go/xchain-utxo/wallet/txsizes"
)

// ErrUnknownFeeOption is returned for a fee option other than average, fast
// and fastest.
var ErrUnknownFeeOption = errors.New("unknown fee option")

// FeeOption selects how quickly a transaction should confirm.
type FeeOption string

const (
	// FeeAverage targets confirmation within about an hour.
	FeeAverage FeeOption = "average"

	// FeeFast targets confirmation within about half an hour.
	FeeFast FeeOption = "fast"

	// FeeFastest targets confirmation in the next block.
	FeeFastest FeeOption = "fastest"
)

// ConfTarget returns the confirmation target, in blocks, of the option.
func (o FeeOption) ConfTarget() (uint32, error) {
	switch o {
	case FeeAverage:
		return 6, nil

	case FeeFast:
		return 3, nil

	case FeeFastest:
		return 1, nil

	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFeeOption, string(o))
	}
}

// FeeRates holds a fee rate per fee option.
type FeeRates struct {
	Average btcunit.SatPerByte
	Fast    btcunit.SatPerByte
	Fastest btcunit.SatPerByte
}

// Rate returns the rate of the given option.
func (r FeeRates) Rate(option FeeOption) (btcunit.SatPerByte, error) {
	switch option {
	case FeeAverage:
		return r.Average, nil

	case FeeFast:
		return r.Fast, nil

	case FeeFastest:
		return r.Fastest, nil

	default:
		return btcunit.ZeroSatPerByte, fmt.Errorf("%w: %q",
			ErrUnknownFeeOption, string(option))
	}
}

// Fees holds the fee of a memo-less transaction without inputs per fee
// option. It is a quote, the fee of a real transaction grows with its
// inputs.
type Fees struct {
	Average btcutil.Amount
	Fast    btcutil.Amount
	Fastest btcutil.Amount
}

// FeesWithRates bundles fee quotes with the rates they were computed from.
type FeesWithRates struct {
	Fees  Fees
	Rates FeeRates
}

// DefaultFeeRates returns the rates used when no fee estimate is available.
func DefaultFeeRates() FeeRates {
	return FeeRates{
		Average: btcunit.NewSatPerByte(10),
		Fast:    btcunit.NewSatPerByte(20),
		Fastest: btcunit.NewSatPerByte(50),
	}
}

// DefaultFeesWithRates returns the default rates and their fee quotes.
func DefaultFeesWithRates() FeesWithRates {
	rates := DefaultFeeRates()

	return FeesWithRates{
		Fees:  calcFees(rates, nil),
		Rates: rates,
	}
}

// DefaultFees returns the fee quotes of the default rates.
func DefaultFees() Fees {
	return DefaultFeesWithRates().Fees
}

// CalcFee returns the fee of a transaction without inputs paying a recipient,
// the change and the given memo at rate. The result is never below
// txsizes.MinTxFee.
func CalcFee(rate btcunit.SatPerByte, memo string) (btcutil.Amount, error) {
	memoScript, err := txrules.CompileMemo(memo)
	if err != nil {
		return 0, err
	}

	return txsizes.EstimateFee(nil, rate, memoScript.UnwrapOr(nil)), nil
}

// calcFees quotes every rate for the compiled memo script.
func calcFees(rates FeeRates, memoScript []byte) Fees {
	return Fees{
		Average: txsizes.EstimateFee(nil, rates.Average, memoScript),
		Fast:    txsizes.EstimateFee(nil, rates.Fast, memoScript),
		Fastest: txsizes.EstimateFee(nil, rates.Fastest, memoScript),
	}
}

// feeRatesFromEstimates maps estimates keyed by confirmation target onto the
// fee options. An option without an exact estimate uses the estimate of the
// closest faster target, or the slowest target available when there is none.
// Rates are rounded to a whole sat/b and never below 1 sat/b.
func feeRatesFromEstimates(
	estimates map[uint32]btcunit.SatPerByte) (FeeRates, error) {

	if len(estimates) == 0 {
		return FeeRates{}, fmt.Errorf("%w: no fee estimates",
			chain.ErrInvalidResponse)
	}

	targets := make([]uint32, 0, len(estimates))
	for target := range estimates {
		targets = append(targets, target)
	}
	sort.Slice(targets, func(i, j int) bool {
		return targets[i] < targets[j]
	})

	minRate := btcunit.NewSatPerByte(1)
	pick := func(option FeeOption) btcunit.SatPerByte {
		want, _ := option.ConfTarget()

		chosen := targets[0]
		for _, target := range targets {
			if target > want {
				break
			}
			chosen = target
		}

		rate := estimates[chosen].Round()
		if rate.LessThan(minRate) {
			return minRate
		}

		return rate
	}

	return FeeRates{
		Average: pick(FeeAverage),
		Fast:    pick(FeeFast),
		Fastest: pick(FeeFastest),
	}, nil
}

// feeQuoter turns live fee estimates into fee quotes.
type feeQuoter struct {
	estimator chain.FeeEstimator
}

// feesWithRates returns the quotes of the live rates, or the defaults when
// no estimator is configured or it fails.
func (q feeQuoter) feesWithRates(ctx context.Context) FeesWithRates {
	if q.estimator == nil {
		return DefaultFeesWithRates()
	}

	estimates, err := q.estimator.FeeEstimates(ctx)
	if err != nil {
		log.Warnf("Fee estimation failed, using default rates: %v", err)
		return DefaultFeesWithRates()
	}

	rates, err := feeRatesFromEstimates(estimates)
	if err != nil {
		log.Warnf("Unusable fee estimates, using default rates: %v", err)
		return DefaultFeesWithRates()
	}

	log.Debugf("Fee rates: average=%v fast=%v fastest=%v", rates.Average,
		rates.Fast, rates.Fastest)

	return FeesWithRates{
		Fees:  calcFees(rates, nil),
		Rates: rates,
	}
}
