package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"nftmarket/core"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/storage"
)

const testAuthToken = "test-token"

type testEnv struct {
	server *Server
	node   *core.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	var custodian [20]byte
	custodian[19] = 0xEE
	node := core.NewNode(db, custodian)

	adminKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate admin key: %v", err)
	}
	var admin, registry, stable, native [20]byte
	copy(admin[:], adminKey.PubKey().Address().Bytes())
	registry[0] = 0x01
	stable[0] = 0x02
	native[0] = 0x03
	if err := node.MarketInitialize(admin, registry, stable, native); err != nil {
		t.Fatalf("initialize market: %v", err)
	}

	server := NewServer(node)
	server.SetAuthToken(testAuthToken)
	return &testEnv{server: server, node: node}
}

func marshalParam(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal param: %v", err)
	}
	return raw
}

func decodeRPCResponse(t *testing.T, recorder *httptest.ResponseRecorder) (json.RawMessage, *RPCError) {
	t.Helper()
	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Result, resp.Error
}

func (env *testEnv) post(t *testing.T, method string, params interface{}, authorized bool) *httptest.ResponseRecorder {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testAuthToken)
	}
	recorder := httptest.NewRecorder()
	env.server.handle(recorder, req)
	return recorder
}

type rpcAccount struct {
	key  *crypto.PrivateKey
	addr [20]byte
}

func newRPCAccount(t *testing.T) rpcAccount {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var addr [20]byte
	copy(addr[:], key.PubKey().Address().Bytes())
	return rpcAccount{key: key, addr: addr}
}

func (a rpcAccount) bech32() string {
	return crypto.NewAddress(crypto.MarketPrefix, a.addr[:]).String()
}

func (a rpcAccount) signHex(t *testing.T, method string, args []byte, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("encode auth args: %v", err)
	}
	sig, signErr := crypto.SignCall(a.key, method, args)
	if signErr != nil {
		t.Fatalf("sign call: %v", signErr)
	}
	return hex.EncodeToString(sig)
}

func TestMarketListForSaleInvalidBech32(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]interface{}{
		"seller":      "invalid",
		"tokenId":     1,
		"priceNative": "1000",
		"priceStable": "100",
		"signature":   hex.EncodeToString(make([]byte, 65)),
	}
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, payload)}}
	recorder := httptest.NewRecorder()
	env.server.handleMarketListForSale(recorder, httptest.NewRequest(http.MethodPost, "/", nil), req)
	_, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr == nil {
		t.Fatalf("expected error")
	}
	if rpcErr.Code != codeMarketInvalidParams {
		t.Fatalf("expected code %d got %d", codeMarketInvalidParams, rpcErr.Code)
	}
}

func TestMarketListForSaleZeroPrice(t *testing.T) {
	env := newTestEnv(t)
	seller := newRPCAccount(t)
	payload := map[string]interface{}{
		"seller":      seller.bech32(),
		"tokenId":     1,
		"priceNative": "0",
		"priceStable": "100",
		"signature":   hex.EncodeToString(make([]byte, 65)),
	}
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, payload)}}
	recorder := httptest.NewRecorder()
	env.server.handleMarketListForSale(recorder, httptest.NewRequest(http.MethodPost, "/", nil), req)
	_, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr == nil || rpcErr.Code != codeMarketInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", rpcErr)
	}
}

func TestMarketListForSaleMissingSignature(t *testing.T) {
	env := newTestEnv(t)
	seller := newRPCAccount(t)
	payload := map[string]interface{}{
		"seller":      seller.bech32(),
		"tokenId":     1,
		"priceNative": "1000",
		"priceStable": "100",
	}
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, payload)}}
	recorder := httptest.NewRecorder()
	env.server.handleMarketListForSale(recorder, httptest.NewRequest(http.MethodPost, "/", nil), req)
	_, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr == nil || rpcErr.Code != codeMarketInvalidParams {
		t.Fatalf("expected invalid params error, got %+v", rpcErr)
	}
}

func TestMarketGetListingNotFound(t *testing.T) {
	env := newTestEnv(t)
	req := &RPCRequest{ID: 1, Params: []json.RawMessage{marshalParam(t, map[string]uint64{"id": 42})}}
	recorder := httptest.NewRecorder()
	env.server.handleMarketGetListing(recorder, httptest.NewRequest(http.MethodPost, "/", nil), req)
	_, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr == nil || rpcErr.Code != codeMarketNotFound {
		t.Fatalf("expected not found error, got %+v", rpcErr)
	}
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]interface{}{
		"buyer":     newRPCAccount(t).bech32(),
		"listingId": 0,
		"signature": hex.EncodeToString(make([]byte, 65)),
	}
	recorder := env.post(t, "market_buyNative", payload, false)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", recorder.Code)
	}
	_, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", rpcErr)
	}
}

func TestQueryMethodsNeedNoToken(t *testing.T) {
	env := newTestEnv(t)
	recorder := env.post(t, "market_totalListings", nil, false)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", recorder.Code)
	}
	result, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %+v", rpcErr)
	}
	var totals map[string]uint64
	if err := json.Unmarshal(result, &totals); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if totals["total"] != 0 {
		t.Fatalf("expected zero listings got %d", totals["total"])
	}
}

func TestMethodNotFound(t *testing.T) {
	env := newTestEnv(t)
	recorder := env.post(t, "market_unknown", nil, true)
	_, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr == nil || rpcErr.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", rpcErr)
	}
}

func TestMarketListAndBuyOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	seller := newRPCAccount(t)
	buyer := newRPCAccount(t)

	if err := env.node.MintNFT(seller.addr, 7); err != nil {
		t.Fatalf("mint nft: %v", err)
	}
	var nativeToken [20]byte
	nativeToken[0] = 0x03
	if err := env.node.MintToken(nativeToken, buyer.addr, big.NewInt(1000)); err != nil {
		t.Fatalf("mint balance: %v", err)
	}

	args, err := market.ListForSaleAuthArgs(seller.addr, 7, big.NewInt(1000), big.NewInt(100), big.NewInt(10))
	recorder := env.post(t, "market_listForSale", map[string]interface{}{
		"seller":       seller.bech32(),
		"tokenId":      7,
		"priceNative":  "1000",
		"priceStable":  "100",
		"exchangeRate": "10",
		"signature":    seller.signHex(t, market.MethodListForSale, args, err),
	}, true)
	result, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr != nil {
		t.Fatalf("list failed: %+v", rpcErr)
	}
	var created marketIDResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("decode list result: %v", err)
	}
	if created.ID != 0 {
		t.Fatalf("expected first listing id 0 got %d", created.ID)
	}

	args, err = market.BuyAuthArgs(buyer.addr, created.ID)
	recorder = env.post(t, "market_buyNative", map[string]interface{}{
		"buyer":     buyer.bech32(),
		"listingId": created.ID,
		"signature": buyer.signHex(t, market.MethodBuyNative, args, err),
	}, true)
	if _, rpcErr = decodeRPCResponse(t, recorder); rpcErr != nil {
		t.Fatalf("buy failed: %+v", rpcErr)
	}

	recorder = env.post(t, "market_getListing", map[string]uint64{"id": created.ID}, false)
	result, rpcErr = decodeRPCResponse(t, recorder)
	if rpcErr != nil {
		t.Fatalf("get listing failed: %+v", rpcErr)
	}
	var listing listingJSON
	if err := json.Unmarshal(result, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Active {
		t.Fatalf("expected listing inactive after sale")
	}
	if listing.Seller != seller.bech32() {
		t.Fatalf("expected seller %s got %s", seller.bech32(), listing.Seller)
	}
	if listing.PriceNative != "1000" {
		t.Fatalf("expected native price 1000 got %s", listing.PriceNative)
	}

	owner, _, err := env.node.NFTOwner(7)
	if err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if owner != buyer.addr {
		t.Fatalf("expected buyer to own token after sale")
	}

	recorder = env.post(t, "market_events", nil, false)
	result, rpcErr = decodeRPCResponse(t, recorder)
	if rpcErr != nil {
		t.Fatalf("events failed: %+v", rpcErr)
	}
	var evs []marketEventJSON
	if err := json.Unmarshal(result, &evs); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	var sold bool
	for _, ev := range evs {
		if ev.Type == market.EventTypeListingSold {
			sold = true
		}
	}
	if !sold {
		t.Fatalf("expected a %s event", market.EventTypeListingSold)
	}
}

func TestMarketSwapOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	alice := newRPCAccount(t)
	bob := newRPCAccount(t)

	if err := env.node.MintNFT(alice.addr, 1); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := env.node.MintNFT(bob.addr, 2); err != nil {
		t.Fatalf("mint: %v", err)
	}

	args, err := market.CreateSwapAuthArgs(alice.addr, 1, 2)
	recorder := env.post(t, "market_createSwapOffer", map[string]interface{}{
		"offerer":        alice.bech32(),
		"offeredTokenId": 1,
		"desiredTokenId": 2,
		"signature":      alice.signHex(t, market.MethodCreateSwapOffer, args, err),
	}, true)
	result, rpcErr := decodeRPCResponse(t, recorder)
	if rpcErr != nil {
		t.Fatalf("create swap failed: %+v", rpcErr)
	}
	var created marketIDResult
	if err := json.Unmarshal(result, &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}

	args, err = market.SwapActionAuthArgs(bob.addr, created.ID)
	recorder = env.post(t, "market_acceptSwap", map[string]interface{}{
		"caller":    bob.bech32(),
		"swapId":    created.ID,
		"signature": bob.signHex(t, market.MethodAcceptSwap, args, err),
	}, true)
	if _, rpcErr = decodeRPCResponse(t, recorder); rpcErr != nil {
		t.Fatalf("accept swap failed: %+v", rpcErr)
	}

	owner, _, err := env.node.NFTOwner(1)
	if err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if owner != bob.addr {
		t.Fatalf("expected offered token with acceptor")
	}
	owner, _, err = env.node.NFTOwner(2)
	if err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if owner != alice.addr {
		t.Fatalf("expected desired token with offerer")
	}
}
