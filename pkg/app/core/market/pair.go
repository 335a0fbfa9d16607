package market

import (
	"fmt"
	"strings"
)

// TradingPair identifies a market, e.g. BTC (base) priced in USD (quote).
type TradingPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// NewTradingPair upper-cases and trims both assets so "btc"/"usd" and
// "BTC"/"USD" name the same market.
func NewTradingPair(base, quote string) TradingPair {
	return TradingPair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// ParseTradingPair reads "BTC_USD", "BTC-USD" or "BTC/USD".
func ParseTradingPair(s string) (TradingPair, error) {
	i := strings.IndexAny(s, "_-/")
	if i < 0 {
		return TradingPair{}, fmt.Errorf("%w: %q has no separator", ErrInvalidPair, s)
	}
	p := NewTradingPair(s[:i], s[i+1:])
	if err := p.Validate(); err != nil {
		return TradingPair{}, err
	}
	return p, nil
}

func (p TradingPair) Validate() error {
	if p.Base == "" || p.Quote == "" {
		return fmt.Errorf("%w: base and quote assets must be specified", ErrInvalidPair)
	}
	if strings.ContainsAny(p.Base+p.Quote, "_-/: ") {
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidPair, p.Base+"_"+p.Quote)
	}
	if p.Base == p.Quote {
		return fmt.Errorf("%w: base and quote are both %s", ErrInvalidPair, p.Base)
	}
	return nil
}

func (p TradingPair) String() string {
	return p.Base + "_" + p.Quote
}
