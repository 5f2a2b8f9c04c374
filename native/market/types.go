package market

import (
	"fmt"
	"math/big"
)

// Currency labels which settlement asset a listing price is denominated in.
// It is a semantic tag only: the engine exposes one buy operation per
// currency instead of branching on caller-supplied strings.
type Currency uint8

const (
	CurrencyNative Currency = iota
	CurrencyStable
)

// String returns the canonical lowercase label for the currency.
func (c Currency) String() string {
	switch c {
	case CurrencyNative:
		return "native"
	case CurrencyStable:
		return "stable"
	default:
		return fmt.Sprintf("currency(%d)", uint8(c))
	}
}

// Valid reports whether the currency tag is within the supported range.
func (c Currency) Valid() bool {
	return c == CurrencyNative || c == CurrencyStable
}

// ListingInfo captures one fixed-price sale offer. The marketplace holds
// custody of the token for the whole active phase; Active flips to false on
// exactly one terminal event (sale or cancellation) and never back.
type ListingInfo struct {
	Seller       [20]byte
	TokenID      uint64
	PriceNative  *big.Int
	PriceStable  *big.Int
	ExchangeRate *big.Int
	Active       bool
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *ListingInfo) Clone() *ListingInfo {
	if l == nil {
		return nil
	}
	clone := *l
	if l.PriceNative != nil {
		clone.PriceNative = new(big.Int).Set(l.PriceNative)
	} else {
		clone.PriceNative = big.NewInt(0)
	}
	if l.PriceStable != nil {
		clone.PriceStable = new(big.Int).Set(l.PriceStable)
	} else {
		clone.PriceStable = big.NewInt(0)
	}
	if l.ExchangeRate != nil {
		clone.ExchangeRate = new(big.Int).Set(l.ExchangeRate)
	} else {
		clone.ExchangeRate = big.NewInt(0)
	}
	return &clone
}

// Price returns the listing price denominated in the requested currency.
func (l *ListingInfo) Price(currency Currency) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	switch currency {
	case CurrencyStable:
		if l.PriceStable == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(l.PriceStable)
	default:
		if l.PriceNative == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(l.PriceNative)
	}
}

// SanitizeListing validates the supplied listing and returns a cloned
// instance with non-nil price fields. The function does not mutate the
// original value.
func SanitizeListing(l *ListingInfo) (*ListingInfo, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if clone.PriceNative.Sign() <= 0 {
		return nil, fmt.Errorf("market: native price must be positive")
	}
	if clone.PriceStable.Sign() <= 0 {
		return nil, fmt.Errorf("market: stable price must be positive")
	}
	return clone, nil
}

// SwapOffer captures a proposal to trade one specific token for another. The
// offered token is custodied by the marketplace while the offer is active.
type SwapOffer struct {
	Offerer        [20]byte
	OfferedTokenID uint64
	DesiredTokenID uint64
	Active         bool
}

// Clone returns a copy of the offer.
func (o *SwapOffer) Clone() *SwapOffer {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// SanitizeSwapOffer validates the supplied offer and returns a clone.
func SanitizeSwapOffer(o *SwapOffer) (*SwapOffer, error) {
	if o == nil {
		return nil, fmt.Errorf("market: nil swap offer")
	}
	if o.OfferedTokenID == o.DesiredTokenID {
		return nil, ErrInvalidSwap
	}
	return o.Clone(), nil
}

// Config is the one-shot marketplace configuration. All four addresses are
// fixed at initialization and immutable thereafter.
type Config struct {
	Admin       [20]byte
	NFTRegistry [20]byte
	StableToken [20]byte
	NativeToken [20]byte
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Counter kinds used by the identifier allocator. Each kind is an
// independent, gapless u64 sequence starting at zero.
const (
	CounterListing = "listing"
	CounterSwap    = "swap"
)
