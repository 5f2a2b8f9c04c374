package state

import (
	"fmt"
	"math/big"

	"nftmarket/native/market"
)

var (
	marketConfigKey      = stateKey([]byte("market/config"))
	marketInitializedKey = stateKey([]byte("market/initialized"))
)

type storedConfig struct {
	Admin       [20]byte
	NFTRegistry [20]byte
	StableToken [20]byte
	NativeToken [20]byte
}

type storedListing struct {
	Seller       [20]byte
	TokenID      uint64
	PriceNative  *big.Int
	PriceStable  *big.Int
	ExchangeRate *big.Int
	Active       bool
}

type storedSwapOffer struct {
	Offerer        [20]byte
	OfferedTokenID uint64
	DesiredTokenID uint64
	Active         bool
}

// MarketConfigPut persists the marketplace configuration and flips the
// explicit one-shot initialization guard.
func (m *Manager) MarketConfigPut(cfg *market.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil market config")
	}
	record := storedConfig{
		Admin:       cfg.Admin,
		NFTRegistry: cfg.NFTRegistry,
		StableToken: cfg.StableToken,
		NativeToken: cfg.NativeToken,
	}
	if err := m.writeRLP(marketConfigKey, &record); err != nil {
		return err
	}
	m.write(marketInitializedKey, []byte{1})
	return nil
}

// MarketConfigGet loads the marketplace configuration.
func (m *Manager) MarketConfigGet() (*market.Config, bool, error) {
	var record storedConfig
	ok, err := m.readRLP(marketConfigKey, &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &market.Config{
		Admin:       record.Admin,
		NFTRegistry: record.NFTRegistry,
		StableToken: record.StableToken,
		NativeToken: record.NativeToken,
	}, true, nil
}

// MarketInitialized reports whether the one-shot guard has been written. The
// guard is an explicit record rather than an implicit key-absence check.
func (m *Manager) MarketInitialized() (bool, error) {
	_, ok, err := m.read(marketInitializedKey)
	return ok, err
}

// ListingPut persists the listing record under its numeric identifier. The
// record is sanitized first so malformed listings never reach storage.
func (m *Manager) ListingPut(id uint64, listing *market.ListingInfo) error {
	sanitized, err := market.SanitizeListing(listing)
	if err != nil {
		return err
	}
	record := storedListing{
		Seller:       sanitized.Seller,
		TokenID:      sanitized.TokenID,
		PriceNative:  sanitized.PriceNative,
		PriceStable:  sanitized.PriceStable,
		ExchangeRate: sanitized.ExchangeRate,
		Active:       sanitized.Active,
	}
	return m.writeRLP(uint64Key("market/listing/", id), &record)
}

// ListingGet loads the listing record for the identifier.
func (m *Manager) ListingGet(id uint64) (*market.ListingInfo, bool, error) {
	var record storedListing
	ok, err := m.readRLP(uint64Key("market/listing/", id), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	listing := &market.ListingInfo{
		Seller:       record.Seller,
		TokenID:      record.TokenID,
		PriceNative:  record.PriceNative,
		PriceStable:  record.PriceStable,
		ExchangeRate: record.ExchangeRate,
		Active:       record.Active,
	}
	return listing.Clone(), true, nil
}

// SwapOfferPut persists the swap offer record under its numeric identifier.
func (m *Manager) SwapOfferPut(id uint64, offer *market.SwapOffer) error {
	sanitized, err := market.SanitizeSwapOffer(offer)
	if err != nil {
		return err
	}
	record := storedSwapOffer{
		Offerer:        sanitized.Offerer,
		OfferedTokenID: sanitized.OfferedTokenID,
		DesiredTokenID: sanitized.DesiredTokenID,
		Active:         sanitized.Active,
	}
	return m.writeRLP(uint64Key("market/swap/", id), &record)
}

// SwapOfferGet loads the swap offer record for the identifier.
func (m *Manager) SwapOfferGet(id uint64) (*market.SwapOffer, bool, error) {
	var record storedSwapOffer
	ok, err := m.readRLP(uint64Key("market/swap/", id), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &market.SwapOffer{
		Offerer:        record.Offerer,
		OfferedTokenID: record.OfferedTokenID,
		DesiredTokenID: record.DesiredTokenID,
		Active:         record.Active,
	}, true, nil
}
