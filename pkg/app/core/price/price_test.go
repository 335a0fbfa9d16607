package price

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat(t *testing.T) {
	tests := []struct {
		name       string
		in         float64
		integer    uint64
		fractional uint64
	}{
		{"whole number", 20, 20, 0},
		{"two decimals", 24.12, 24, 12000},
		{"five decimals", 20.50001, 20, 50001},
		{"rounds half up", 1.000005, 1, 1},
		{"rounds down", 1.000004, 1, 0},
		{"carries into integer", 1.999999, 2, 0},
		{"zero", 0, 0, 0},
		{"negative zero", math.Copysign(0, -1), 0, 0},
		{"sub unit", 0.00001, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromFloat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.integer, p.Integer())
			assert.Equal(t, tt.fractional, p.Fractional())
		})
	}
}

func TestFromFloat_Invalid(t *testing.T) {
	for _, v := range []float64{-0.00001, -20.5, math.NaN(), math.Inf(1), math.Inf(-1), 1e20} {
		_, err := FromFloat(v)
		assert.ErrorIs(t, err, ErrInvalidPrice, "value %v", v)
	}
}

func TestMustFromFloat_Panics(t *testing.T) {
	assert.Panics(t, func() { MustFromFloat(-1) })
	assert.NotPanics(t, func() { MustFromFloat(1) })
}

func TestNew(t *testing.T) {
	p, err := New(24, 12000)
	require.NoError(t, err)
	assert.Equal(t, MustFromFloat(24.12), p)

	_, err = New(1, Scale)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = New(MaxInteger, Scale-1)
	assert.NoError(t, err)
	_, err = New(MaxInteger+1, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestEqualityIgnoresInputBeyondPrecision(t *testing.T) {
	// quantization: both inputs land on the same scaled unit
	assert.Equal(t, MustFromFloat(20.500001), MustFromFloat(20.5))
	assert.NotEqual(t, MustFromFloat(20.50001), MustFromFloat(20.5))

	m := map[Price]int{}
	m[MustFromFloat(20.5)]++
	m[MustFromFloat(20.500001)]++
	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[MustFromFloat(20.5)])
}

func TestCompare(t *testing.T) {
	a := MustFromFloat(20.5)
	b := MustFromFloat(20.50001)
	c := MustFromFloat(21)

	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
	assert.Equal(t, 0, Compare(a, MustFromFloat(20.5)))
	assert.Equal(t, -1, b.Cmp(c))
	assert.True(t, a.Less(c))
	assert.False(t, c.Less(a))
	assert.False(t, a.Less(a))

	// whole part dominates the fractional part
	assert.True(t, MustFromFloat(1.99999).Less(MustFromFloat(2)))
}

func TestCompare_ConsistentWithDecimalOrder(t *testing.T) {
	values := []float64{0, 0.00001, 0.5, 0.99999, 1, 1.00001, 20.5, 24.1, 24.12, 300.12, 1e9}
	for i := range values {
		for j := range values {
			got := Compare(MustFromFloat(values[i]), MustFromFloat(values[j]))
			var want int
			switch {
			case values[i] < values[j]:
				want = -1
			case values[i] > values[j]:
				want = 1
			}
			assert.Equal(t, want, got, "%v vs %v", values[i], values[j])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.00001, 20.5, 24.1, 24.12, 300.12, 99999.99999, 123456789.00042} {
		p := MustFromFloat(v)
		back, err := FromFloat(p.Float64())
		require.NoError(t, err)
		assert.Equal(t, p, back, "value %v", v)
	}
}

func TestRoundTrip_UpToMaxInteger(t *testing.T) {
	for _, whole := range []uint64{MaxInteger, MaxInteger - 1, 1 << 35, 40000000000, 68000000000} {
		for _, frac := range []uint64{0, 1, 7, 49999, 50000, 99998, Scale - 1} {
			p, err := New(whole, frac)
			require.NoError(t, err)
			back, err := FromFloat(p.Float64())
			require.NoError(t, err)
			require.Equal(t, p, back, "price %s", p)
		}
	}
}

func TestAboveMaxIntegerRejected(t *testing.T) {
	for _, v := range []float64{float64(MaxInteger + 1), 8e10, 1e12, 1e20} {
		_, err := FromFloat(v)
		assert.ErrorIs(t, err, ErrInvalidPrice, "value %v", v)
	}

	for _, s := range []string{"68719476736", "80000000000.00007", "1000000000000.00001", "68719476735.999995"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidPrice, "input %q", s)
	}

	p, err := Parse("68719476735.99999")
	require.NoError(t, err)
	assert.Equal(t, MaxInteger, p.Integer())
	assert.Equal(t, Scale-1, p.Fractional())
}

func TestFloat64(t *testing.T) {
	assert.InDelta(t, 24.12, MustFromFloat(24.12).Float64(), 1e-9)
	assert.Equal(t, 20.0, MustFromFloat(20).Float64())
}

func TestString(t *testing.T) {
	assert.Equal(t, "20.50000", MustFromFloat(20.5).String())
	assert.Equal(t, "0.00001", MustFromFloat(0.00001).String())
	assert.Equal(t, "24.12000", MustFromFloat(24.12).String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"20.5", "20.50000"},
		{"24.12", "24.12000"},
		{"  7 ", "7.00000"},
		{".5", "0.50000"},
		{"3.", "3.00000"},
		{"1.000005", "1.00001"},
		{"1.000004999", "1.00000"},
		{"9.999995", "10.00000"},
		{"0.00001", "0.00001"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", ".", "-1", "+1", "1e5", "1,000", "abc", "1.2.3", "18446744073709551616"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidPrice, "input %q", s)
	}
}

func TestParseAgreesWithFromFloat(t *testing.T) {
	for _, s := range []string{"20.5", "24.1", "24.12", "300.12", "0.00001", "12345.6789"} {
		p, err := Parse(s)
		require.NoError(t, err)
		f, err := FromFloat(p.Float64())
		require.NoError(t, err)
		assert.Equal(t, p, f, s)
	}
}

func TestJSON(t *testing.T) {
	type payload struct {
		Price Price `json:"price"`
	}

	b, err := json.Marshal(payload{Price: MustFromFloat(24.12)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"24.12000"}`, string(b))

	var out payload
	require.NoError(t, json.Unmarshal([]byte(`{"price":"20.5"}`), &out))
	assert.Equal(t, MustFromFloat(20.5), out.Price)

	assert.Error(t, json.Unmarshal([]byte(`{"price":"-3"}`), &out))
}
