package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// The helpers below produce the canonical argument encoding an actor signs,
// together with the method name, to authorize exactly one call. They must
// stay in lockstep with the payloads the engine verifies.

// ListForSaleAuthArgs encodes the payload signed for MethodListForSale.
func ListForSaleAuthArgs(seller [20]byte, tokenID uint64, priceNative, priceStable, exchangeRate *big.Int) ([]byte, error) {
	return rlp.EncodeToBytes(listForSaleArgs{
		Seller:       seller,
		TokenID:      tokenID,
		PriceNative:  bigOrZero(priceNative),
		PriceStable:  bigOrZero(priceStable),
		ExchangeRate: bigOrZero(exchangeRate),
	})
}

// BuyAuthArgs encodes the payload signed for MethodBuyNative and
// MethodBuyStable.
func BuyAuthArgs(buyer [20]byte, listingID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(buyArgs{Buyer: buyer, ListingID: listingID})
}

// CancelListingAuthArgs encodes the payload signed for MethodCancelListing.
func CancelListingAuthArgs(seller [20]byte, listingID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(cancelListingArgs{Seller: seller, ListingID: listingID})
}

// CreateSwapAuthArgs encodes the payload signed for MethodCreateSwapOffer.
func CreateSwapAuthArgs(offerer [20]byte, offeredTokenID, desiredTokenID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(createSwapArgs{
		Offerer:        offerer,
		OfferedTokenID: offeredTokenID,
		DesiredTokenID: desiredTokenID,
	})
}

// SwapActionAuthArgs encodes the payload signed for MethodAcceptSwap and
// MethodCancelSwap.
func SwapActionAuthArgs(caller [20]byte, swapID uint64) ([]byte, error) {
	return rlp.EncodeToBytes(swapActionArgs{Caller: caller, SwapID: swapID})
}
