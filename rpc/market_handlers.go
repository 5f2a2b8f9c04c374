package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"nftmarket/core"
	"nftmarket/crypto"
	"nftmarket/native/market"
)

const (
	codeMarketInvalidParams = -32041
	codeMarketNotFound      = -32042
	codeMarketForbidden     = -32043
	codeMarketConflict      = -32044
	codeMarketInternal      = -32045
)

type marketInitializeParams struct {
	Admin       string `json:"admin"`
	NFTRegistry string `json:"nftRegistry"`
	StableToken string `json:"stableToken"`
	NativeToken string `json:"nativeToken"`
}

type marketListParams struct {
	Seller       string `json:"seller"`
	TokenID      uint64 `json:"tokenId"`
	PriceNative  string `json:"priceNative"`
	PriceStable  string `json:"priceStable"`
	ExchangeRate string `json:"exchangeRate,omitempty"`
	Signature    string `json:"signature"`
}

type marketBuyParams struct {
	Buyer     string `json:"buyer"`
	ListingID uint64 `json:"listingId"`
	Signature string `json:"signature"`
}

type marketCancelListingParams struct {
	Seller    string `json:"seller"`
	ListingID uint64 `json:"listingId"`
	Signature string `json:"signature"`
}

type marketCreateSwapParams struct {
	Offerer        string `json:"offerer"`
	OfferedTokenID uint64 `json:"offeredTokenId"`
	DesiredTokenID uint64 `json:"desiredTokenId"`
	Signature      string `json:"signature"`
}

type marketSwapActionParams struct {
	Caller    string `json:"caller"`
	SwapID    uint64 `json:"swapId"`
	Signature string `json:"signature"`
}

type marketIDParams struct {
	ID uint64 `json:"id"`
}

type marketIDResult struct {
	ID uint64 `json:"id"`
}

type listingJSON struct {
	ID           uint64 `json:"id"`
	Seller       string `json:"seller"`
	TokenID      uint64 `json:"tokenId"`
	PriceNative  string `json:"priceNative"`
	PriceStable  string `json:"priceStable"`
	ExchangeRate string `json:"exchangeRate"`
	Active       bool   `json:"active"`
}

type swapOfferJSON struct {
	ID             uint64 `json:"id"`
	Offerer        string `json:"offerer"`
	OfferedTokenID uint64 `json:"offeredTokenId"`
	DesiredTokenID uint64 `json:"desiredTokenId"`
	Active         bool   `json:"active"`
}

type marketEventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func parseBech32Address(addr string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.MarketPrefix, addr[:]).String()
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func parseOptionalBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseSignatureHex(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if trimmed == "" {
		return nil, fmt.Errorf("signature required")
	}
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding")
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes")
	}
	return sig, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeMarketInternal
	message := "internal_error"
	switch {
	case errors.Is(err, market.ErrListingNotFound) || errors.Is(err, market.ErrSwapNotFound):
		status = http.StatusNotFound
		code = codeMarketNotFound
		message = "not_found"
	case errors.Is(err, market.ErrUnauthorized) || errors.Is(err, core.ErrBadSignature):
		status = http.StatusForbidden
		code = codeMarketForbidden
		message = "forbidden"
	case errors.Is(err, market.ErrListingInactive) || errors.Is(err, market.ErrSwapInactive) ||
		errors.Is(err, market.ErrAlreadyInitialized) || errors.Is(err, market.ErrNotInitialized):
		status = http.StatusConflict
		code = codeMarketConflict
		message = "conflict"
	case errors.Is(err, market.ErrInvalidPrice) || errors.Is(err, market.ErrInvalidSwap):
		status = http.StatusBadRequest
		code = codeMarketInvalidParams
		message = "invalid_params"
	}
	writeError(w, status, id, code, message, err.Error())
}

func (s *Server) handleMarketInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketInitializeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	admin, err := parseBech32Address(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseBech32Address(params.NFTRegistry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	stable, err := parseBech32Address(params.StableToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	native, err := parseBech32Address(params.NativeToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketInitialize(admin, registry, stable, native); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"initialized": true})
}

func (s *Server) handleMarketListForSale(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketListParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseBech32Address(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	priceNative, err := parsePositiveBigInt(params.PriceNative)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	priceStable, err := parsePositiveBigInt(params.PriceStable)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	rate, err := parseOptionalBigInt(params.ExchangeRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	sig, err := parseSignatureHex(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := s.node.MarketListForSale(seller, params.TokenID, priceNative, priceStable, rate, sig)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketIDResult{ID: id})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest, native bool) {
	var params marketBuyParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	sig, err := parseSignatureHex(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if native {
		err = s.node.MarketBuyNative(buyer, params.ListingID, sig)
	} else {
		err = s.node.MarketBuyStable(buyer, params.ListingID, sig)
	}
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"sold": true})
}

func (s *Server) handleMarketCancelListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketCancelListingParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseBech32Address(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	sig, err := parseSignatureHex(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketCancelListing(seller, params.ListingID, sig); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleMarketCreateSwapOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketCreateSwapParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	offerer, err := parseBech32Address(params.Offerer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	sig, err := parseSignatureHex(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := s.node.MarketCreateSwapOffer(offerer, params.OfferedTokenID, params.DesiredTokenID, sig)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketIDResult{ID: id})
}

func (s *Server) handleMarketAcceptSwap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketSwapActionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	sig, err := parseSignatureHex(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketAcceptSwap(caller, params.SwapID, sig); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"swapped": true})
}

func (s *Server) handleMarketCancelSwap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketSwapActionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	sig, err := parseSignatureHex(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketCancelSwap(caller, params.SwapID, sig); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.MarketGetListing(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingJSON{
		ID:           params.ID,
		Seller:       formatAddress(listing.Seller),
		TokenID:      listing.TokenID,
		PriceNative:  listing.PriceNative.String(),
		PriceStable:  listing.PriceStable.String(),
		ExchangeRate: listing.ExchangeRate.String(),
		Active:       listing.Active,
	})
}

func (s *Server) handleMarketGetSwapOffer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, err := s.node.MarketGetSwapOffer(params.ID)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, swapOfferJSON{
		ID:             params.ID,
		Offerer:        formatAddress(offer.Offerer),
		OfferedTokenID: offer.OfferedTokenID,
		DesiredTokenID: offer.DesiredTokenID,
		Active:         offer.Active,
	})
}

func (s *Server) handleMarketTotalListings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, err := s.node.MarketTotalListings()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"total": total})
}

func (s *Server) handleMarketTotalSwaps(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, err := s.node.MarketTotalSwaps()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"total": total})
}

func (s *Server) handleMarketEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	records := s.node.Events()
	out := make([]marketEventJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, marketEventJSON{Type: rec.Type, Attributes: rec.Attributes})
	}
	writeResult(w, req.ID, out)
}
