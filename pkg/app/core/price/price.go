// Package price implements the fixed-point price used to key order book levels.
//
// A Price stores a non-negative decimal as a whole part and a fractional part
// scaled by Scale. The scale is a single compile-time constant for the whole
// process, so every Price that can ever be compared shares it.
package price

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Precision is the number of decimal digits kept after the point.
	Precision = 5

	// Scale is 10^Precision: one fractional unit is 1/Scale (0.00001).
	Scale uint64 = 100000
)

// MaxInteger is the largest whole part a Price may carry. Up to here one
// float64 step is finer than half of 1/Scale, so FromFloat(p.Float64()) == p
// holds for every Price that can be constructed.
const MaxInteger uint64 = 1<<36 - 1

var ErrInvalidPrice = errors.New("invalid price")

// Price is a fixed-point decimal price. The zero value is 0.00000.
// Price is comparable, so it can be used directly as a map key; equality and
// hashing both cover exactly (integer, fractional).
type Price struct {
	integer    uint64
	fractional uint64
}

// New builds a Price from its raw parts. fractional is in units of 1/Scale.
func New(integer, fractional uint64) (Price, error) {
	if integer > MaxInteger {
		return Price{}, fmt.Errorf("%w: whole part %d above %d", ErrInvalidPrice, integer, MaxInteger)
	}
	if fractional >= Scale {
		return Price{}, fmt.Errorf("%w: fractional part %d out of range [0, %d)", ErrInvalidPrice, fractional, Scale)
	}
	return Price{integer: integer, fractional: fractional}, nil
}

// FromFloat converts a decimal to a Price. The whole part is truncated and the
// fractional part is rounded half away from zero to the nearest 1/Scale, so
// inputs closer together than half a unit collapse to the same Price.
// Negative, NaN and infinite values and values above MaxInteger are rejected.
func FromFloat(v float64) (Price, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Price{}, fmt.Errorf("%w: %v is not finite", ErrInvalidPrice, v)
	}
	if v < 0 {
		return Price{}, fmt.Errorf("%w: %v is negative", ErrInvalidPrice, v)
	}
	if v >= float64(MaxInteger+1) {
		return Price{}, fmt.Errorf("%w: %v above %d", ErrInvalidPrice, v, MaxInteger)
	}

	whole, frac := math.Modf(v)
	integer := uint64(whole)
	fractional := uint64(math.Round(frac * float64(Scale)))
	if fractional >= Scale {
		// 1.999999 rounds to 2.00000
		if integer == MaxInteger {
			return Price{}, fmt.Errorf("%w: %v rounds above %d", ErrInvalidPrice, v, MaxInteger)
		}
		integer++
		fractional -= Scale
	}
	return Price{integer: integer, fractional: fractional}, nil
}

// MustFromFloat is FromFloat for literals known to be valid. It panics otherwise.
func MustFromFloat(v float64) Price {
	p, err := FromFloat(v)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse reads a plain decimal string such as "24.12" without passing through
// float64. Digits beyond Precision are rounded half up on the first dropped
// digit. Signs, exponents and grouping characters are rejected.
func Parse(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Price{}, fmt.Errorf("%w: empty string", ErrInvalidPrice)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return Price{}, fmt.Errorf("%w: %q has no digits", ErrInvalidPrice, s)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Price{}, fmt.Errorf("%w: %q is not a plain decimal", ErrInvalidPrice, s)
	}

	var integer uint64
	if intPart != "" {
		n, err := strconv.ParseUint(intPart, 10, 64)
		if err != nil || n > MaxInteger {
			return Price{}, fmt.Errorf("%w: %q above %d", ErrInvalidPrice, s, MaxInteger)
		}
		integer = n
	}

	roundUp := len(fracPart) > Precision && fracPart[Precision] >= '5'
	if len(fracPart) > Precision {
		fracPart = fracPart[:Precision]
	}
	var fractional uint64
	for i := 0; i < Precision; i++ {
		fractional *= 10
		if i < len(fracPart) {
			fractional += uint64(fracPart[i] - '0')
		}
	}

	if roundUp {
		fractional++
		if fractional == Scale {
			if integer == MaxInteger {
				return Price{}, fmt.Errorf("%w: %q rounds above %d", ErrInvalidPrice, s, MaxInteger)
			}
			integer++
			fractional = 0
		}
	}
	return Price{integer: integer, fractional: fractional}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Integer returns the whole part.
func (p Price) Integer() uint64 { return p.integer }

// Fractional returns the fractional part in units of 1/Scale.
func (p Price) Fractional() uint64 { return p.fractional }

// Compare returns -1, 0 or +1 ordering a before, equal to, or after b.
// The whole part decides first, then the fractional part.
func Compare(a, b Price) int {
	switch {
	case a.integer < b.integer:
		return -1
	case a.integer > b.integer:
		return 1
	case a.fractional < b.fractional:
		return -1
	case a.fractional > b.fractional:
		return 1
	default:
		return 0
	}
}

func (p Price) Cmp(q Price) int { return Compare(p, q) }

func (p Price) Less(q Price) bool { return Compare(p, q) < 0 }

// Float64 reconstructs integer + fractional/Scale. Because the whole part is
// capped at MaxInteger, FromFloat(p.Float64()) returns p for every Price.
func (p Price) Float64() float64 {
	return float64(p.integer) + float64(p.fractional)/float64(Scale)
}

func (p Price) String() string {
	return fmt.Sprintf("%d.%05d", p.integer, p.fractional)
}

// MarshalText encodes the price as its decimal string so JSON payloads never
// carry a float.
func (p Price) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Price) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
