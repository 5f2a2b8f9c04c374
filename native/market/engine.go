package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/core/events"
)

var (
	errNilState     = errors.New("market engine: state not configured")
	errNilRegistry  = errors.New("market engine: nft registry not configured")
	errNilLedger    = errors.New("market engine: token ledger not configured")
	errNilAuth      = errors.New("market engine: authorizer not configured")
	errNilCustodian = errors.New("market engine: custodian address not configured")
)

// marketState is the persistence surface the engine requires. Implementations
// must clone records on both put and get so engine-held copies never alias
// stored state.
type marketState interface {
	MarketConfigGet() (*Config, bool, error)
	MarketConfigPut(*Config) error
	MarketInitialized() (bool, error)
	CounterNext(kind string) (uint64, error)
	CounterValue(kind string) (uint64, error)
	ListingPut(id uint64, listing *ListingInfo) error
	ListingGet(id uint64) (*ListingInfo, bool, error)
	SwapOfferPut(id uint64, offer *SwapOffer) error
	SwapOfferGet(id uint64) (*SwapOffer, bool, error)
}

// NFTRegistry is the external ownership registry the marketplace delegates
// custody movements to. The registry is the single source of truth for token
// ownership: Transfer must fail unless from currently owns the token.
type NFTRegistry interface {
	Transfer(from, to [20]byte, tokenID uint64) error
}

// TokenLedger moves fungible balances between accounts on behalf of the
// marketplace. Transfer must fail on insufficient balance.
type TokenLedger interface {
	Transfer(token, from, to [20]byte, amount *big.Int) error
	BalanceOf(token, addr [20]byte) (*big.Int, error)
}

// Authorizer is the external trust primitive establishing that an actor
// consented to exactly one invocation (method plus canonical arguments). No
// engine side effect occurs unless this check passes first.
type Authorizer interface {
	RequireAuth(actor [20]byte, method string, args []byte) error
}

type marketEvent struct {
	rec *events.Record
}

func (e marketEvent) EventType() string {
	if e.rec == nil {
		return ""
	}
	return e.rec.Type
}

func (e marketEvent) Record() *events.Record { return e.rec }

// Engine implements the marketplace state machine: it takes custody of
// tokens on listing and offer creation and releases custody only for a
// matching, authorized counter-action against a still-active record.
type Engine struct {
	state     marketState
	registry  NFTRegistry
	ledger    TokenLedger
	auth      Authorizer
	emitter   events.Emitter
	custodian [20]byte
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state marketState) { e.state = state }

// SetRegistry configures the NFT ownership registry.
func (e *Engine) SetRegistry(registry NFTRegistry) { e.registry = registry }

// SetLedger configures the fungible token ledger.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetAuthorizer configures the call authorization primitive.
func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetCustodian configures the marketplace's own address. Escrowed tokens are
// held by this address for the whole active phase of a listing or offer.
func (e *Engine) SetCustodian(addr [20]byte) { e.custodian = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(rec *events.Record) {
	if e == nil || e.emitter == nil || rec == nil {
		return
	}
	e.emitter.Emit(marketEvent{rec: rec})
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registry == nil:
		return errNilRegistry
	case e.ledger == nil:
		return errNilLedger
	case e.auth == nil:
		return errNilAuth
	case e.custodian == ([20]byte{}):
		return errNilCustodian
	}
	return nil
}

// requireAuth encodes the call arguments canonically and asks the authorizer
// to prove the actor consented to this exact invocation.
func (e *Engine) requireAuth(actor [20]byte, method string, args interface{}) error {
	encoded, err := rlp.EncodeToBytes(args)
	if err != nil {
		return fmt.Errorf("market: encode auth payload: %w", err)
	}
	if err := e.auth.RequireAuth(actor, method, encoded); err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, ok, err := e.state.MarketConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// moveToken delegates one custody movement to the registry. Ownership and
// authorization over the token are enforced by the registry, not here; on
// failure the whole enclosing operation is abandoned.
func (e *Engine) moveToken(from, to [20]byte, tokenID uint64) error {
	if err := e.registry.Transfer(from, to, tokenID); err != nil {
		return fmt.Errorf("market: custody transfer of token %d: %w", tokenID, err)
	}
	return nil
}

// Initialize writes the one-shot marketplace configuration. A second attempt
// fails with ErrAlreadyInitialized and leaves the first configuration intact.
func (e *Engine) Initialize(admin, nftRegistry, stableToken, nativeToken [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	initialized, err := e.state.MarketInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}
	cfg := &Config{
		Admin:       admin,
		NFTRegistry: nftRegistry,
		StableToken: stableToken,
		NativeToken: nativeToken,
	}
	if err := e.state.MarketConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewInitializedEvent(cfg))
	return nil
}

type listForSaleArgs struct {
	Seller       [20]byte
	TokenID      uint64
	PriceNative  *big.Int
	PriceStable  *big.Int
	ExchangeRate *big.Int
}

// Canonical method names actors sign over when authorizing a call.
const (
	MethodInitialize      = "market_initialize"
	MethodListForSale     = "market_listForSale"
	MethodBuyNative       = "market_buyNative"
	MethodBuyStable       = "market_buyStable"
	MethodCancelListing   = "market_cancelListing"
	MethodCreateSwapOffer = "market_createSwapOffer"
	MethodAcceptSwap      = "market_acceptSwap"
	MethodCancelSwap      = "market_cancelSwap"
)

// ListForSale takes custody of the token and records a new active listing,
// returning its identifier. Identifiers are allocated 0, 1, 2, ... in
// creation order with no gaps and no reuse.
func (e *Engine) ListForSale(seller [20]byte, tokenID uint64, priceNative, priceStable, exchangeRate *big.Int) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if _, err := e.loadConfig(); err != nil {
		return 0, err
	}
	// Validate prices before building the canonical auth payload: the
	// encoding is only defined for non-negative amounts.
	if priceNative == nil || priceNative.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	if priceStable == nil || priceStable.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	if exchangeRate != nil && exchangeRate.Sign() < 0 {
		return 0, ErrInvalidPrice
	}
	args := listForSaleArgs{
		Seller:       seller,
		TokenID:      tokenID,
		PriceNative:  bigOrZero(priceNative),
		PriceStable:  bigOrZero(priceStable),
		ExchangeRate: bigOrZero(exchangeRate),
	}
	if err := e.requireAuth(seller, MethodListForSale, args); err != nil {
		return 0, err
	}

	// Custody first: if the seller does not own the token the listing is
	// never recorded and no identifier is consumed.
	if err := e.moveToken(seller, e.custodian, tokenID); err != nil {
		return 0, err
	}

	listingID, err := e.state.CounterNext(CounterListing)
	if err != nil {
		return 0, err
	}
	listing := &ListingInfo{
		Seller:       seller,
		TokenID:      tokenID,
		PriceNative:  new(big.Int).Set(priceNative),
		PriceStable:  new(big.Int).Set(priceStable),
		ExchangeRate: bigOrZero(exchangeRate),
		Active:       true,
	}
	if err := e.state.ListingPut(listingID, listing); err != nil {
		return 0, err
	}
	e.emit(NewListingCreatedEvent(listingID, listing))
	return listingID, nil
}

type buyArgs struct {
	Buyer     [20]byte
	ListingID uint64
}

// BuyNative fulfils the listing with payment in the native settlement asset.
func (e *Engine) BuyNative(buyer [20]byte, listingID uint64) error {
	return e.buy(buyer, listingID, CurrencyNative, MethodBuyNative)
}

// BuyStable fulfils the listing with payment in the stable settlement asset.
func (e *Engine) BuyStable(buyer [20]byte, listingID uint64) error {
	return e.buy(buyer, listingID, CurrencyStable, MethodBuyStable)
}

func (e *Engine) buy(buyer [20]byte, listingID uint64, currency Currency, method string) error {
	if err := e.ready(); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if err := e.requireAuth(buyer, method, buyArgs{Buyer: buyer, ListingID: listingID}); err != nil {
		return err
	}
	listing, ok, err := e.state.ListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if !listing.Active {
		return ErrListingInactive
	}

	token := cfg.NativeToken
	if currency == CurrencyStable {
		token = cfg.StableToken
	}
	// Payment settles before custody release. A custody failure after
	// payment aborts the whole invocation, so the payment never commits
	// without the token moving.
	if err := e.ledger.Transfer(token, buyer, listing.Seller, listing.Price(currency)); err != nil {
		return fmt.Errorf("market: settle payment for listing %d: %w", listingID, err)
	}
	if err := e.moveToken(e.custodian, buyer, listing.TokenID); err != nil {
		return err
	}

	listing.Active = false
	if err := e.state.ListingPut(listingID, listing); err != nil {
		return err
	}
	e.emit(NewListingSoldEvent(listingID, listing, buyer, currency))
	return nil
}

type cancelListingArgs struct {
	Seller    [20]byte
	ListingID uint64
}

// CancelListing returns the token to the seller and closes the listing. Only
// the recorded seller may cancel.
func (e *Engine) CancelListing(seller [20]byte, listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.loadConfig(); err != nil {
		return err
	}
	if err := e.requireAuth(seller, MethodCancelListing, cancelListingArgs{Seller: seller, ListingID: listingID}); err != nil {
		return err
	}
	listing, ok, err := e.state.ListingGet(listingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if listing.Seller != seller {
		return ErrUnauthorized
	}
	if !listing.Active {
		return ErrListingInactive
	}

	if err := e.moveToken(e.custodian, seller, listing.TokenID); err != nil {
		return err
	}
	listing.Active = false
	if err := e.state.ListingPut(listingID, listing); err != nil {
		return err
	}
	e.emit(NewListingCancelledEvent(listingID, listing))
	return nil
}

type createSwapArgs struct {
	Offerer        [20]byte
	OfferedTokenID uint64
	DesiredTokenID uint64
}

// CreateSwapOffer takes custody of the offered token and records a new
// active swap offer, returning its identifier.
func (e *Engine) CreateSwapOffer(offerer [20]byte, offeredTokenID, desiredTokenID uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if _, err := e.loadConfig(); err != nil {
		return 0, err
	}
	args := createSwapArgs{Offerer: offerer, OfferedTokenID: offeredTokenID, DesiredTokenID: desiredTokenID}
	if err := e.requireAuth(offerer, MethodCreateSwapOffer, args); err != nil {
		return 0, err
	}
	if offeredTokenID == desiredTokenID {
		return 0, ErrInvalidSwap
	}

	if err := e.moveToken(offerer, e.custodian, offeredTokenID); err != nil {
		return 0, err
	}

	swapID, err := e.state.CounterNext(CounterSwap)
	if err != nil {
		return 0, err
	}
	offer := &SwapOffer{
		Offerer:        offerer,
		OfferedTokenID: offeredTokenID,
		DesiredTokenID: desiredTokenID,
		Active:         true,
	}
	if err := e.state.SwapOfferPut(swapID, offer); err != nil {
		return 0, err
	}
	e.emit(NewSwapCreatedEvent(swapID, offer))
	return swapID, nil
}

type swapActionArgs struct {
	Caller [20]byte
	SwapID uint64
}

// AcceptSwap exchanges the two tokens: the acceptor must currently own the
// desired token. All three custody movements succeed or the whole call
// fails with no state change.
func (e *Engine) AcceptSwap(acceptor [20]byte, swapID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.loadConfig(); err != nil {
		return err
	}
	if err := e.requireAuth(acceptor, MethodAcceptSwap, swapActionArgs{Caller: acceptor, SwapID: swapID}); err != nil {
		return err
	}
	offer, ok, err := e.state.SwapOfferGet(swapID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSwapNotFound
	}
	if !offer.Active {
		return ErrSwapInactive
	}

	// Take custody of the desired token, then release both sides. The
	// registry rejects the first movement unless the acceptor owns the
	// exact desired token.
	if err := e.moveToken(acceptor, e.custodian, offer.DesiredTokenID); err != nil {
		return err
	}
	if err := e.moveToken(e.custodian, acceptor, offer.OfferedTokenID); err != nil {
		return err
	}
	if err := e.moveToken(e.custodian, offer.Offerer, offer.DesiredTokenID); err != nil {
		return err
	}

	offer.Active = false
	if err := e.state.SwapOfferPut(swapID, offer); err != nil {
		return err
	}
	e.emit(NewSwapAcceptedEvent(swapID, offer, acceptor))
	return nil
}

// CancelSwap returns the offered token to the offerer and closes the offer.
// Only the recorded offerer may cancel.
func (e *Engine) CancelSwap(offerer [20]byte, swapID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.loadConfig(); err != nil {
		return err
	}
	if err := e.requireAuth(offerer, MethodCancelSwap, swapActionArgs{Caller: offerer, SwapID: swapID}); err != nil {
		return err
	}
	offer, ok, err := e.state.SwapOfferGet(swapID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSwapNotFound
	}
	if offer.Offerer != offerer {
		return ErrUnauthorized
	}
	if !offer.Active {
		return ErrSwapInactive
	}

	if err := e.moveToken(e.custodian, offerer, offer.OfferedTokenID); err != nil {
		return err
	}
	offer.Active = false
	if err := e.state.SwapOfferPut(swapID, offer); err != nil {
		return err
	}
	e.emit(NewSwapCancelledEvent(swapID, offer))
	return nil
}

// GetListing returns the listing record for the identifier.
func (e *Engine) GetListing(listingID uint64) (*ListingInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.ListingGet(listingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

// GetSwapOffer returns the swap offer record for the identifier.
func (e *Engine) GetSwapOffer(swapID uint64) (*SwapOffer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	offer, ok, err := e.state.SwapOfferGet(swapID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSwapNotFound
	}
	return offer, nil
}

// TotalListings returns the count of listings ever created.
func (e *Engine) TotalListings() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.CounterValue(CounterListing)
}

// TotalSwaps returns the count of swap offers ever created.
func (e *Engine) TotalSwaps() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.CounterValue(CounterSwap)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
