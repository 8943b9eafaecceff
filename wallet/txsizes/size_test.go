package txsizes

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
	"github.com/xchain-go/xchain-utxo/pkg/btcunit"
)

// p2wpkhScript is a 22 byte P2WPKH output script.
var p2wpkhScript = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0xab}, 20)...)

// TestEstimateSize checks the size formula against hand computed values.
func TestEstimateSize(t *testing.T) {
	t.Parallel()

	memo := make([]byte, 12)

	testCases := []struct {
		name        string
		prevScripts [][]byte
		memo        []byte
		expected    uint64
	}{
		{
			name:     "no inputs",
			expected: 10 + 2*34,
		},
		{
			name:     "no inputs with memo",
			memo:     memo,
			expected: 10 + 2*34 + 9 + 12,
		},
		{
			name:        "unknown script",
			prevScripts: [][]byte{nil},
			expected:    10 + 41 + 107 + 1 + 2*34,
		},
		{
			name:        "p2wpkh inputs",
			prevScripts: [][]byte{p2wpkhScript, p2wpkhScript},
			expected:    10 + 2*(41+22+1) + 2*34,
		},
		{
			name:        "mixed inputs with memo",
			prevScripts: [][]byte{p2wpkhScript, {}},
			memo:        memo,
			expected:    10 + (41 + 22) + (41 + 107) + 2 + 2*34 + 9 + 12,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			size := EstimateSize(tc.prevScripts, tc.memo)
			require.Equal(t, tc.expected, size.Bytes())
		})
	}
}

// TestEstimateFee checks the fee for a single unknown-script input at 10
// sat/b, which yields 227 bytes.
func TestEstimateFee(t *testing.T) {
	t.Parallel()

	fee := EstimateFee([][]byte{nil}, btcunit.NewSatPerByte(10), nil)
	require.Equal(t, btcutil.Amount(2270), fee)

	// Fractional rates are rounded up to the next satoshi.
	rate := btcunit.CalcSatPerByte(21, btcunit.NewByteSize(2))
	fee = EstimateFee([][]byte{nil, nil, nil}, rate, nil)
	size := EstimateSize([][]byte{nil, nil, nil}, nil).Bytes()
	require.Equal(t, btcutil.Amount((size*21+1)/2), fee)
}

// TestEstimateFeeFloor checks that the fee never drops below MinTxFee, for
// any input count and rate.
func TestEstimateFeeFloor(t *testing.T) {
	t.Parallel()

	rates := []btcunit.SatPerByte{
		btcunit.ZeroSatPerByte,
		btcunit.NewSatPerByte(1),
		btcunit.CalcSatPerByte(1, btcunit.NewByteSize(3)),
		btcunit.NewSatPerByte(4),
		btcunit.NewSatPerByte(100),
	}

	for _, rate := range rates {
		for inputs := 0; inputs <= 20; inputs++ {
			prevScripts := make([][]byte, inputs)
			fee := EstimateFee(prevScripts, rate, nil)
			require.GreaterOrEqual(t, fee, MinTxFee,
				"rate %v inputs %d", rate, inputs)

			size := EstimateSize(prevScripts, nil)
			require.GreaterOrEqual(t, fee, rate.FeeForSize(size))
		}
	}

	// 78 bytes at 1 sat/b is well below the floor.
	require.Equal(t, MinTxFee,
		EstimateFee(nil, btcunit.NewSatPerByte(1), nil))
}

// TestInputSize checks the size of a single input.
func TestInputSize(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 148, InputSize(nil).Bytes())
	require.EqualValues(t, 63, InputSize(p2wpkhScript).Bytes())
}
