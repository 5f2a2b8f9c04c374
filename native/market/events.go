package market

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/events"
)

const (
	EventTypeInitialized      = "market.initialized"
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingSold      = "market.listing.sold"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypeSwapCreated      = "market.swap.created"
	EventTypeSwapAccepted     = "market.swap.accepted"
	EventTypeSwapCancelled    = "market.swap.cancelled"
)

// NewInitializedEvent returns the canonical payload emitted when the one-shot
// configuration is written.
func NewInitializedEvent(cfg *Config) *events.Record {
	attrs := make(map[string]string)
	if cfg != nil {
		attrs["admin"] = hex.EncodeToString(cfg.Admin[:])
		attrs["nftRegistry"] = hex.EncodeToString(cfg.NFTRegistry[:])
		attrs["stableToken"] = hex.EncodeToString(cfg.StableToken[:])
		attrs["nativeToken"] = hex.EncodeToString(cfg.NativeToken[:])
	}
	return &events.Record{Type: EventTypeInitialized, Attributes: attrs}
}

// NewListingCreatedEvent returns the payload for a newly recorded listing.
func NewListingCreatedEvent(id uint64, l *ListingInfo) *events.Record {
	return newListingEvent(EventTypeListingCreated, id, l, nil)
}

// NewListingSoldEvent returns the payload emitted when a listing is fulfilled
// in either settlement currency.
func NewListingSoldEvent(id uint64, l *ListingInfo, buyer [20]byte, currency Currency) *events.Record {
	extra := map[string]string{
		"buyer":    hex.EncodeToString(buyer[:]),
		"currency": currency.String(),
	}
	return newListingEvent(EventTypeListingSold, id, l, extra)
}

// NewListingCancelledEvent returns the payload emitted when a seller cancels
// and the token returns to them.
func NewListingCancelledEvent(id uint64, l *ListingInfo) *events.Record {
	return newListingEvent(EventTypeListingCancelled, id, l, nil)
}

// NewSwapCreatedEvent returns the payload for a newly recorded swap offer.
func NewSwapCreatedEvent(id uint64, o *SwapOffer) *events.Record {
	return newSwapEvent(EventTypeSwapCreated, id, o, nil)
}

// NewSwapAcceptedEvent returns the payload emitted when both tokens change
// hands.
func NewSwapAcceptedEvent(id uint64, o *SwapOffer, acceptor [20]byte) *events.Record {
	extra := map[string]string{"acceptor": hex.EncodeToString(acceptor[:])}
	return newSwapEvent(EventTypeSwapAccepted, id, o, extra)
}

// NewSwapCancelledEvent returns the payload emitted when the offerer reclaims
// the offered token.
func NewSwapCancelledEvent(id uint64, o *SwapOffer) *events.Record {
	return newSwapEvent(EventTypeSwapCancelled, id, o, nil)
}

func newListingEvent(eventType string, id uint64, l *ListingInfo, extra map[string]string) *events.Record {
	attrs := make(map[string]string)
	if l != nil {
		clone := l.Clone()
		attrs["listingId"] = strconv.FormatUint(id, 10)
		attrs["seller"] = hex.EncodeToString(clone.Seller[:])
		attrs["tokenId"] = strconv.FormatUint(clone.TokenID, 10)
		attrs["priceNative"] = clone.PriceNative.String()
		attrs["priceStable"] = clone.PriceStable.String()
		attrs["exchangeRate"] = clone.ExchangeRate.String()
		attrs["active"] = strconv.FormatBool(clone.Active)
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &events.Record{Type: eventType, Attributes: attrs}
}

func newSwapEvent(eventType string, id uint64, o *SwapOffer, extra map[string]string) *events.Record {
	attrs := make(map[string]string)
	if o != nil {
		attrs["swapId"] = strconv.FormatUint(id, 10)
		attrs["offerer"] = hex.EncodeToString(o.Offerer[:])
		attrs["offeredTokenId"] = strconv.FormatUint(o.OfferedTokenID, 10)
		attrs["desiredTokenId"] = strconv.FormatUint(o.DesiredTokenID, 10)
		attrs["active"] = strconv.FormatBool(o.Active)
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &events.Record{Type: eventType, Attributes: attrs}
}
