// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides a set of types for dealing with fee rates and
// transaction sizes on byte-priced UTXO chains.
package btcunit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// kilo is a generic multiplier for kilo units.
	kilo = 1000

	// floatStringPrecision is the number of decimal places to use when
	// converting a fee rate to a string. Three places keep sub-satoshi
	// rates such as 1 sat/kb (0.001 sat/b) visible.
	floatStringPrecision = 3
)

var (
	// ErrInvalidRate is returned when a fee rate cannot be represented,
	// e.g. because it was built from NaN or an infinite float.
	ErrInvalidRate = errors.New("invalid fee rate")

	// ZeroSatPerByte is a fee rate of 0 sat/b.
	ZeroSatPerByte = NewSatPerByte(0)

	// ZeroSatPerKByte is a fee rate of 0 sat/kb.
	ZeroSatPerKByte = NewSatPerKByte(0)
)

// baseFeeRate stores the canonical representation of a fee rate, which is
// satoshis per kilobyte (sat/kb). All other fee rate units are derived from
// this.
type baseFeeRate struct {
	// satsPerKB is the fee rate in satoshis per 1000 bytes. Keeping the
	// rate as a rational number means fractional per-byte rates returned
	// by fee estimators survive until they are explicitly rounded.
	satsPerKB *big.Rat
}

// newBaseFeeRate creates a new baseFeeRate with the given numerator and
// denominator. It handles the zero denominator case by returning a zero fee
// rate.
func newBaseFeeRate(numerator btcutil.Amount, denominator uint64) baseFeeRate {
	if denominator == 0 {
		return baseFeeRate{satsPerKB: big.NewRat(0, 1)}
	}

	return baseFeeRate{satsPerKB: big.NewRat(
		int64(numerator),
		safeUint64ToInt64(denominator),
	)}
}

// rat returns the canonical rate, treating an uninitialized value as zero.
func (f baseFeeRate) rat() *big.Rat {
	if f.satsPerKB == nil {
		return big.NewRat(0, 1)
	}

	return f.satsPerKB
}

// ToSatPerByte converts the fee rate to sat/b.
func (f baseFeeRate) ToSatPerByte() SatPerByte {
	return SatPerByte{f}
}

// ToSatPerKByte converts the fee rate to sat/kb.
func (f baseFeeRate) ToSatPerKByte() SatPerKByte {
	return SatPerKByte{f}
}

// FeeForSize calculates the fee resulting from this fee rate and the given
// size. The resulting fee is rounded down (truncated).
func (f baseFeeRate) FeeForSize(size ByteSize) btcutil.Amount {
	feeRational := new(big.Rat).Mul(
		f.rat(), big.NewRat(safeUint64ToInt64(size.b), kilo),
	)

	quotient := new(big.Int).Quo(feeRational.Num(), feeRational.Denom())

	return btcutil.Amount(quotient.Int64())
}

// FeeForSizeRoundUp calculates the fee resulting from this fee rate and the
// given size, rounding up to the nearest satoshi.
func (f baseFeeRate) FeeForSizeRoundUp(size ByteSize) btcutil.Amount {
	feeRational := new(big.Rat).Mul(
		f.rat(), big.NewRat(safeUint64ToInt64(size.b), kilo),
	)

	numerator := feeRational.Num()
	denominator := feeRational.Denom()

	// Ceiling division: (numerator + denominator - 1) / denominator.
	result := new(big.Int).Add(numerator, denominator)
	result.Sub(result, big.NewInt(1))
	result.Quo(result, denominator)

	return btcutil.Amount(result.Int64())
}

// Sign returns -1, 0 or +1 depending on the sign of the fee rate.
func (f baseFeeRate) Sign() int {
	return f.rat().Sign()
}

// equal returns true if the fee rate is equal to the other fee rate.
func (f baseFeeRate) equal(other baseFeeRate) bool {
	return f.rat().Cmp(other.rat()) == 0
}

// greaterThan returns true if the fee rate is greater than the other fee rate.
func (f baseFeeRate) greaterThan(other baseFeeRate) bool {
	return f.rat().Cmp(other.rat()) > 0
}

// lessThan returns true if the fee rate is less than the other fee rate.
func (f baseFeeRate) lessThan(other baseFeeRate) bool {
	return f.rat().Cmp(other.rat()) < 0
}

// greaterThanOrEqual returns true if the fee rate is greater than or equal to
// the other fee rate.
func (f baseFeeRate) greaterThanOrEqual(other baseFeeRate) bool {
	return f.rat().Cmp(other.rat()) >= 0
}

// lessThanOrEqual returns true if the fee rate is less than or equal to the
// other fee rate.
func (f baseFeeRate) lessThanOrEqual(other baseFeeRate) bool {
	return f.rat().Cmp(other.rat()) <= 0
}

// SatPerByte represents a fee rate in sat/b. Internally, all fee rates are
// stored and operated on as satoshis per kilobyte (sat/kb). The `String()`
// method is the only one that presents the fee rate in its specific sat/b
// unit.
type SatPerByte struct {
	baseFeeRate
}

// NewSatPerByte creates a new fee rate in sat/b.
func NewSatPerByte(rate btcutil.Amount) SatPerByte {
	return CalcSatPerByte(rate, NewByteSize(1))
}

// CalcSatPerByte calculates the fee rate in sat/b for a given fee and size.
func CalcSatPerByte(fee btcutil.Amount, size ByteSize) SatPerByte {
	// To convert the rate to the canonical sat/kb unit, we use the
	// formula: (fee * 1000) / size_in_bytes.
	return SatPerByte{newBaseFeeRate(fee*kilo, size.b)}
}

// SatPerByteFromFloat converts a floating point sat/b value, as returned by
// fee estimation endpoints, into a SatPerByte. The conversion is exact for
// every finite float.
func SatPerByteFromFloat(rate float64) (SatPerByte, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return ZeroSatPerByte, fmt.Errorf("%w: %v sat/b", ErrInvalidRate,
			rate)
	}

	perByte := new(big.Rat)
	perByte.SetFloat64(rate)

	return SatPerByte{baseFeeRate{
		satsPerKB: perByte.Mul(perByte, big.NewRat(kilo, 1)),
	}}, nil
}

// Round returns the fee rate rounded to a whole number of sat/b. Halves are
// rounded away from zero.
func (s SatPerByte) Round() SatPerByte {
	perByte := new(big.Rat).Mul(s.rat(), big.NewRat(1, kilo))

	num := new(big.Int).Abs(perByte.Num())
	denom := perByte.Denom()

	// (2*|num| + denom) / (2*denom) rounds half up on the magnitude.
	twice := new(big.Int).Lsh(num, 1)
	twice.Add(twice, denom)
	whole := twice.Quo(twice, new(big.Int).Lsh(denom, 1))

	if perByte.Sign() < 0 {
		whole.Neg(whole)
	}

	return NewSatPerByte(btcutil.Amount(whole.Int64()))
}

// IsWhole returns true if the rate is an integral number of sat/b.
func (s SatPerByte) IsWhole() bool {
	return new(big.Rat).Mul(s.rat(), big.NewRat(1, kilo)).IsInt()
}

// Float64 returns the nearest float64 value of the rate in sat/b.
func (s SatPerByte) Float64() float64 {
	perByte, _ := new(big.Rat).Mul(s.rat(), big.NewRat(1, kilo)).Float64()
	return perByte
}

// String returns a human-readable string of the fee rate.
func (s SatPerByte) String() string {
	perByte := new(big.Rat).Mul(s.rat(), big.NewRat(1, kilo))

	return perByte.FloatString(floatStringPrecision) + " sat/b"
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (s SatPerByte) Equal(other SatPerByte) bool {
	return s.equal(other.baseFeeRate)
}

// GreaterThan returns true if the fee rate is greater than the other fee rate.
func (s SatPerByte) GreaterThan(other SatPerByte) bool {
	return s.greaterThan(other.baseFeeRate)
}

// LessThan returns true if the fee rate is less than the other fee rate.
func (s SatPerByte) LessThan(other SatPerByte) bool {
	return s.lessThan(other.baseFeeRate)
}

// GreaterThanOrEqual returns true if the fee rate is greater than or equal to
// the other fee rate.
func (s SatPerByte) GreaterThanOrEqual(other SatPerByte) bool {
	return s.greaterThanOrEqual(other.baseFeeRate)
}

// LessThanOrEqual returns true if the fee rate is less than or equal to the
// other fee rate.
func (s SatPerByte) LessThanOrEqual(other SatPerByte) bool {
	return s.lessThanOrEqual(other.baseFeeRate)
}

// SatPerKByte represents a fee rate in sat/kb, the unit full nodes report
// their fee estimates in.
type SatPerKByte struct {
	baseFeeRate
}

// NewSatPerKByte creates a new fee rate in sat/kb.
func NewSatPerKByte(rate btcutil.Amount) SatPerKByte {
	return SatPerKByte{newBaseFeeRate(rate, 1)}
}

// String returns a human-readable string of the fee rate.
func (s SatPerKByte) String() string {
	return s.rat().FloatString(floatStringPrecision) + " sat/kb"
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (s SatPerKByte) Equal(other SatPerKByte) bool {
	return s.equal(other.baseFeeRate)
}

// GreaterThan returns true if the fee rate is greater than the other fee rate.
func (s SatPerKByte) GreaterThan(other SatPerKByte) bool {
	return s.greaterThan(other.baseFeeRate)
}

// LessThan returns true if the fee rate is less than the other fee rate.
func (s SatPerKByte) LessThan(other SatPerKByte) bool {
	return s.lessThan(other.baseFeeRate)
}

// safeUint64ToInt64 converts a uint64 to an int64, capping at math.MaxInt64.
// In practice the values being converted are transaction sizes, which are
// limited by consensus rules and are not expected to overflow an int64.
func safeUint64ToInt64(u uint64) int64 {
	if u > math.MaxInt64 {
		slog.Warn("Capping uint64 value to math.MaxInt64",
			slog.Uint64("old", u), slog.Int64("new", math.MaxInt64))

		return math.MaxInt64
	}

	return int64(u)
}
