package pow

import (
	"math/big"

	"github.com/iotaledger/hive.go/ierrors"
)

// decimalPrecision is the mantissa precision of the sampler's decimal path in
// bits. 256 bits correspond to roughly 77 decimal digits, comfortably above
// the scale the geometric sampler needs for difficulties up to 2^70.
const decimalPrecision = 256

var ErrNonPositiveLogArgument = ierrors.New("logarithm argument must be positive")

// ln2 at decimalPrecision, computed once at package initialization.
var ln2 *big.Float

func init() {
	half := newDecimal().SetFloat64(0.5)
	ln2 = newDecimal().Neg(lnMantissa(half))
}

func newDecimal() *big.Float {
	return new(big.Float).SetPrec(decimalPrecision)
}

// ln computes the natural logarithm of x on arbitrary-precision floats. The
// argument is reduced to its mantissa in [0.5, 1), whose logarithm is summed
// with the scaled logarithm of two.
func ln(x *big.Float) (*big.Float, error) {
	if x.Sign() <= 0 {
		return nil, ErrNonPositiveLogArgument
	}

	mantissa := newDecimal()
	exponent := x.MantExp(mantissa)

	result := lnMantissa(mantissa)
	if exponent != 0 {
		result.Add(result, newDecimal().Mul(ln2, newDecimal().SetInt64(int64(exponent))))
	}

	return result, nil
}

// lnMantissa computes ln(m) for m in [0.5, 1) through the area hyperbolic
// tangent series ln(m) = 2 * Σ z^(2k+1) / (2k+1) with z = (m-1)/(m+1), which
// converges quickly on that interval. The sum ends once a term no longer
// changes it at the working precision.
func lnMantissa(m *big.Float) *big.Float {
	one := newDecimal().SetInt64(1)
	z := newDecimal().Quo(newDecimal().Sub(m, one), newDecimal().Add(m, one))
	zSquared := newDecimal().Mul(z, z)

	power := newDecimal().Set(z)
	sum := newDecimal().Set(z)
	previous := newDecimal()

	for k := int64(3); ; k += 2 {
		power.Mul(power, zSquared)

		previous.Set(sum)
		sum.Add(sum, newDecimal().Quo(power, newDecimal().SetInt64(k)))

		if sum.Cmp(previous) == 0 {
			break
		}
	}

	return sum.Mul(sum, newDecimal().SetInt64(2))
}
