package orderbook

import (
	"fmt"
	"strings"
)

type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return fmt.Sprintf("Side(%d)", int8(s))
	}
}

func (s Side) Valid() bool { return s == Bid || s == Ask }

// ParseSide accepts "bid"/"buy" and "ask"/"sell", case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bid", "buy":
		return Bid, nil
	case "ask", "sell":
		return Ask, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Order is a resting order. Orders are values: once appended to a Limit they
// are never modified.
type Order struct {
	ID        string  `json:"id,omitempty"`
	Side      Side    `json:"side"`
	Size      float64 `json:"size"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix nanos, set by the engine
}

func NewOrder(side Side, size float64) Order {
	return Order{Side: side, Size: size}
}
