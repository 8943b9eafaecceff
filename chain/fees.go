// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// FeeEstimators queries an ordered list of fee estimators. The first one that
// returns an estimate wins, the following ones are only asked after the
// previous one failed.
type FeeEstimators []FeeEstimator

// A compile time check to ensure FeeEstimators implements FeeEstimator.
var _ FeeEstimator = (FeeEstimators)(nil)

// FeeEstimates returns the estimates of the first estimator that answers.
func (f FeeEstimators) FeeEstimates(
	ctx context.Context) (map[uint32]btcunit.SatPerByte, error) {

	lastErr := errors.New("no fee estimator configured")
	for i, estimator := range f {
		estimates, err := estimator.FeeEstimates(ctx)
		if err == nil {
			return estimates, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		log.Warnf("Fee estimator %d (%T) failed, trying next: %v", i,
			estimator, err)

		lastErr = err
	}

	return nil, fmt.Errorf("%w: %w", ErrFeeEstimatorUnavailable, lastErr)
}
