package core

import (
	"bytes"
	"errors"
	"math/big"
	"sync"

	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/observability/metrics"
	"nftmarket/storage"
)

// ErrBadSignature is returned when a call signature does not recover to the
// actor the call claims to act for.
var ErrBadSignature = errors.New("core: signature does not match actor")

// maxRecentEvents bounds the in-memory event log served over RPC.
const maxRecentEvents = 1024

// Node owns the database handle and serialises marketplace entry points.
// Every entry point runs against a fresh state manager and either commits
// all of its writes in one batch or discards them.
type Node struct {
	db        storage.Database
	custodian [20]byte

	stateMu sync.Mutex

	eventsMu sync.Mutex
	recent   []events.Record
}

// NewNode wires a node over the given database. The custodian address holds
// escrowed tokens while listings and swap offers are active.
func NewNode(db storage.Database, custodian [20]byte) *Node {
	return &Node{db: db, custodian: custodian}
}

// Custodian returns the escrow account address used by this node.
func (n *Node) Custodian() [20]byte { return n.custodian }

type recordedEvent interface {
	Record() *events.Record
}

// eventCollector buffers events emitted during an entry point so they are
// only published once the state commit succeeds.
type eventCollector struct {
	records []events.Record
}

func (c *eventCollector) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	payload, ok := evt.(recordedEvent)
	if !ok {
		return
	}
	rec := payload.Record()
	if rec == nil {
		return
	}
	c.records = append(c.records, *rec)
}

// sigAuthorizer proves actor consent for a single call: the signature must
// recover to the actor over the digest of the method and canonical arguments.
type sigAuthorizer struct {
	sig []byte
}

func (a sigAuthorizer) RequireAuth(actor [20]byte, method string, args []byte) error {
	recovered, err := crypto.RecoverCaller(method, args, a.sig)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered[:], actor[:]) {
		return ErrBadSignature
	}
	return nil
}

// nftRegistry adapts the state manager's ownership records to the engine's
// registry capability.
type nftRegistry struct {
	manager *state.Manager
}

func (r nftRegistry) Transfer(from, to [20]byte, tokenID uint64) error {
	return r.manager.NFTTransfer(from, to, tokenID)
}

// tokenLedger adapts the state manager's balance records to the engine's
// ledger capability.
type tokenLedger struct {
	manager *state.Manager
}

func (l tokenLedger) Transfer(token, from, to [20]byte, amount *big.Int) error {
	return l.manager.TokenTransfer(token, from, to, amount)
}

func (l tokenLedger) BalanceOf(token, addr [20]byte) (*big.Int, error) {
	return l.manager.TokenBalance(token, addr)
}

func (n *Node) newMarketEngine(manager *state.Manager, auth market.Authorizer, collector *eventCollector) *market.Engine {
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetRegistry(nftRegistry{manager: manager})
	engine.SetLedger(tokenLedger{manager: manager})
	engine.SetAuthorizer(auth)
	engine.SetCustodian(n.custodian)
	engine.SetEmitter(collector)
	return engine
}

// withMarket runs one mutating entry point: build a fresh session, execute,
// and commit or discard as a unit. Buffered events are published only after
// a successful commit.
func (n *Node) withMarket(method string, sig []byte, fn func(*market.Engine) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	collector := &eventCollector{}
	engine := n.newMarketEngine(manager, sigAuthorizer{sig: sig}, collector)

	err := fn(engine)
	if err == nil {
		err = manager.Commit()
	}
	metrics.Market().ObserveCall(method, err)
	if err != nil {
		manager.Discard()
		return err
	}
	n.publishEvents(collector.records)
	return nil
}

func (n *Node) publishEvents(records []events.Record) {
	if len(records) == 0 {
		return
	}
	n.eventsMu.Lock()
	defer n.eventsMu.Unlock()
	for _, rec := range records {
		metrics.Market().ObserveEvent(rec.Type)
		switch rec.Type {
		case market.EventTypeListingCreated:
			metrics.Market().AddOpenListings(1)
		case market.EventTypeListingSold, market.EventTypeListingCancelled:
			metrics.Market().AddOpenListings(-1)
		case market.EventTypeSwapCreated:
			metrics.Market().AddOpenSwaps(1)
		case market.EventTypeSwapAccepted, market.EventTypeSwapCancelled:
			metrics.Market().AddOpenSwaps(-1)
		}
		n.recent = append(n.recent, rec)
	}
	if overflow := len(n.recent) - maxRecentEvents; overflow > 0 {
		n.recent = append([]events.Record(nil), n.recent[overflow:]...)
	}
}

// Events returns a copy of the recent event log, oldest first.
func (n *Node) Events() []events.Record {
	n.eventsMu.Lock()
	defer n.eventsMu.Unlock()
	out := make([]events.Record, len(n.recent))
	copy(out, n.recent)
	return out
}

// MarketInitialize performs the one-shot marketplace setup.
func (n *Node) MarketInitialize(admin, registry, stableToken, nativeToken [20]byte) error {
	return n.withMarket(market.MethodInitialize, nil, func(engine *market.Engine) error {
		return engine.Initialize(admin, registry, stableToken, nativeToken)
	})
}

// MarketListForSale escrows the seller's token and opens a listing.
func (n *Node) MarketListForSale(seller [20]byte, tokenID uint64, priceNative, priceStable, exchangeRate *big.Int, sig []byte) (uint64, error) {
	var id uint64
	err := n.withMarket(market.MethodListForSale, sig, func(engine *market.Engine) error {
		var err error
		id, err = engine.ListForSale(seller, tokenID, priceNative, priceStable, exchangeRate)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MarketBuyNative settles a listing in the native currency.
func (n *Node) MarketBuyNative(buyer [20]byte, listingID uint64, sig []byte) error {
	return n.withMarket(market.MethodBuyNative, sig, func(engine *market.Engine) error {
		return engine.BuyNative(buyer, listingID)
	})
}

// MarketBuyStable settles a listing in the stable currency.
func (n *Node) MarketBuyStable(buyer [20]byte, listingID uint64, sig []byte) error {
	return n.withMarket(market.MethodBuyStable, sig, func(engine *market.Engine) error {
		return engine.BuyStable(buyer, listingID)
	})
}

// MarketCancelListing returns the escrowed token to the seller and retires
// the listing.
func (n *Node) MarketCancelListing(seller [20]byte, listingID uint64, sig []byte) error {
	return n.withMarket(market.MethodCancelListing, sig, func(engine *market.Engine) error {
		return engine.CancelListing(seller, listingID)
	})
}

// MarketCreateSwapOffer escrows the offered token and opens a swap offer.
func (n *Node) MarketCreateSwapOffer(offerer [20]byte, offeredTokenID, desiredTokenID uint64, sig []byte) (uint64, error) {
	var id uint64
	err := n.withMarket(market.MethodCreateSwapOffer, sig, func(engine *market.Engine) error {
		var err error
		id, err = engine.CreateSwapOffer(offerer, offeredTokenID, desiredTokenID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// MarketAcceptSwap executes an open swap offer against the acceptor's token.
func (n *Node) MarketAcceptSwap(acceptor [20]byte, swapID uint64, sig []byte) error {
	return n.withMarket(market.MethodAcceptSwap, sig, func(engine *market.Engine) error {
		return engine.AcceptSwap(acceptor, swapID)
	})
}

// MarketCancelSwap returns the escrowed token to the offerer and retires the
// offer.
func (n *Node) MarketCancelSwap(offerer [20]byte, swapID uint64, sig []byte) error {
	return n.withMarket(market.MethodCancelSwap, sig, func(engine *market.Engine) error {
		return engine.CancelSwap(offerer, swapID)
	})
}

func (n *Node) queryEngine() *market.Engine {
	manager := state.NewManager(n.db)
	return n.newMarketEngine(manager, sigAuthorizer{}, &eventCollector{})
}

// MarketGetListing returns the listing stored under the given id.
func (n *Node) MarketGetListing(listingID uint64) (*market.ListingInfo, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.queryEngine().GetListing(listingID)
}

// MarketGetSwapOffer returns the swap offer stored under the given id.
func (n *Node) MarketGetSwapOffer(swapID uint64) (*market.SwapOffer, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.queryEngine().GetSwapOffer(swapID)
}

// MarketTotalListings returns the number of listings ever created.
func (n *Node) MarketTotalListings() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.queryEngine().TotalListings()
}

// MarketTotalSwaps returns the number of swap offers ever created.
func (n *Node) MarketTotalSwaps() (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.queryEngine().TotalSwaps()
}

// MintNFT seeds an ownership record. Intended for genesis and test setup.
func (n *Node) MintNFT(owner [20]byte, tokenID uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	if _, ok, err := manager.NFTOwner(tokenID); err != nil {
		return err
	} else if ok {
		return errors.New("core: token already minted")
	}
	manager.NFTSetOwner(tokenID, owner)
	return manager.Commit()
}

// MintToken credits a fungible balance. Intended for genesis and test setup.
func (n *Node) MintToken(token, addr [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := state.NewManager(n.db)
	balance, err := manager.TokenBalance(token, addr)
	if err != nil {
		return err
	}
	if err := manager.TokenSetBalance(token, addr, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return manager.Commit()
}

// NFTOwner reports the current owner of a token, if any.
func (n *Node) NFTOwner(tokenID uint64) ([20]byte, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).NFTOwner(tokenID)
}

// TokenBalance reports an account's balance for a fungible token.
func (n *Node) TokenBalance(token, addr [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return state.NewManager(n.db).TokenBalance(token, addr)
}
