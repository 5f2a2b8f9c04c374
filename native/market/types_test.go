package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestListingClone(t *testing.T) {
	l := &ListingInfo{
		Seller:       newTestAddress(0x01),
		TokenID:      4,
		PriceNative:  big.NewInt(10),
		PriceStable:  big.NewInt(2),
		ExchangeRate: big.NewInt(5),
		Active:       true,
	}
	clone := l.Clone()
	clone.PriceNative.SetInt64(99)
	clone.Active = false
	if l.PriceNative.Int64() != 10 {
		t.Fatalf("clone shares price pointer")
	}
	if !l.Active {
		t.Fatalf("clone mutated original")
	}
}

func TestListingCloneNilPrices(t *testing.T) {
	l := &ListingInfo{}
	clone := l.Clone()
	if clone.PriceNative == nil || clone.PriceStable == nil || clone.ExchangeRate == nil {
		t.Fatalf("clone left nil price fields")
	}
}

func TestSanitizeListing(t *testing.T) {
	l := &ListingInfo{PriceNative: big.NewInt(1), PriceStable: big.NewInt(1)}
	if _, err := SanitizeListing(l); err != nil {
		t.Fatalf("sanitize valid listing: %v", err)
	}
	l.PriceStable = big.NewInt(0)
	if _, err := SanitizeListing(l); err == nil {
		t.Fatalf("expected error for zero stable price")
	}
	if _, err := SanitizeListing(nil); err == nil {
		t.Fatalf("expected error for nil listing")
	}
}

func TestSanitizeSwapOffer(t *testing.T) {
	o := &SwapOffer{OfferedTokenID: 1, DesiredTokenID: 2, Active: true}
	clone, err := SanitizeSwapOffer(o)
	if err != nil {
		t.Fatalf("sanitize valid offer: %v", err)
	}
	clone.Active = false
	if !o.Active {
		t.Fatalf("sanitize returned aliased offer")
	}

	o.DesiredTokenID = 1
	if _, err := SanitizeSwapOffer(o); !errors.Is(err, ErrInvalidSwap) {
		t.Fatalf("expected ErrInvalidSwap, got %v", err)
	}
}

func TestListingPrice(t *testing.T) {
	l := &ListingInfo{PriceNative: big.NewInt(10), PriceStable: big.NewInt(3)}
	if l.Price(CurrencyNative).Int64() != 10 {
		t.Fatalf("wrong native price")
	}
	if l.Price(CurrencyStable).Int64() != 3 {
		t.Fatalf("wrong stable price")
	}
	got := l.Price(CurrencyNative)
	got.SetInt64(77)
	if l.PriceNative.Int64() != 10 {
		t.Fatalf("Price returned aliased value")
	}
}

func TestCurrencyString(t *testing.T) {
	if CurrencyNative.String() != "native" || CurrencyStable.String() != "stable" {
		t.Fatalf("unexpected currency labels")
	}
	if !CurrencyNative.Valid() || !CurrencyStable.Valid() || Currency(9).Valid() {
		t.Fatalf("unexpected validity")
	}
}
