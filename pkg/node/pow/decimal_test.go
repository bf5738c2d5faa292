package pow

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLn_AgreesWithFloat64(t *testing.T) {
	for _, x := range []float64{0.0001, 0.3, 0.5, 0.9999, 1, 2, 10, 1e6, 1e15} {
		result, err := ln(newDecimal().SetFloat64(x))
		require.NoError(t, err)

		got, _ := result.Float64()
		require.InDelta(t, math.Log(x), got, 1e-12, "ln(%v)", x)
	}
}

func TestLn_One(t *testing.T) {
	result, err := ln(newDecimal().SetInt64(1))
	require.NoError(t, err)
	require.Zero(t, result.Sign())
}

func TestLn_RejectsNonPositive(t *testing.T) {
	_, err := ln(newDecimal().SetInt64(0))
	require.ErrorIs(t, err, ErrNonPositiveLogArgument)

	_, err = ln(newDecimal().SetInt64(-3))
	require.ErrorIs(t, err, ErrNonPositiveLogArgument)
}

func TestLn_TinyArgumentKeepsPrecision(t *testing.T) {
	// ln(1 - 2^-60) = -2^-60 - 2^-121 - ...; double precision would round the
	// argument to 1 before a float64 log could see it.
	p := newDecimal().Quo(newDecimal().SetInt64(1), newDecimal().SetInt(new(big.Int).Lsh(big.NewInt(1), 60)))
	q := newDecimal().Sub(newDecimal().SetInt64(1), p)

	result, err := ln(q)
	require.NoError(t, err)
	require.Negative(t, result.Sign())

	// compare -ln(q) against p with a relative tolerance.
	ratio, _ := newDecimal().Quo(newDecimal().Neg(result), p).Float64()
	require.InDelta(t, 1, ratio, 1e-15)
}
