package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// Ownership and balance records for the collaborator services the daemon
// hosts in-process: the NFT ownership registry and the fungible token
// ledgers. They live in the same overlay as the marketplace records, so one
// entry point commits every asset movement atomically or not at all.

var (
	// ErrUnknownToken is returned when an NFT has no ownership record.
	ErrUnknownToken = errors.New("state: token does not exist")
	// ErrNotTokenOwner is returned when a custody transfer names a sender
	// that does not currently own the token.
	ErrNotTokenOwner = errors.New("state: sender is not the token owner")
	// ErrInsufficientBalance is returned when a ledger transfer exceeds
	// the sender's balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
)

func nftOwnerKey(tokenID uint64) []byte {
	return uint64Key("nft/owner/", tokenID)
}

func balanceKey(token, addr [20]byte) []byte {
	return stateKey([]byte("ledger/balance/"), token[:], addr[:])
}

// NFTOwner returns the current owner of the token, if any.
func (m *Manager) NFTOwner(tokenID uint64) ([20]byte, bool, error) {
	var owner [20]byte
	data, ok, err := m.read(nftOwnerKey(tokenID))
	if err != nil || !ok {
		return owner, false, err
	}
	if len(data) != 20 {
		return owner, false, fmt.Errorf("state: malformed owner record for token %d", tokenID)
	}
	copy(owner[:], data)
	return owner, true, nil
}

// NFTSetOwner records the owner of the token unconditionally. Used by
// genesis seeding and tests; transfers go through NFTTransfer.
func (m *Manager) NFTSetOwner(tokenID uint64, owner [20]byte) {
	m.write(nftOwnerKey(tokenID), append([]byte(nil), owner[:]...))
}

// NFTTransfer moves the token from its current owner to the recipient. The
// sender must currently own the token; the registry record is the single
// source of truth.
func (m *Manager) NFTTransfer(from, to [20]byte, tokenID uint64) error {
	owner, ok, err := m.NFTOwner(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: token %d", ErrUnknownToken, tokenID)
	}
	if owner != from {
		return fmt.Errorf("%w: token %d", ErrNotTokenOwner, tokenID)
	}
	m.NFTSetOwner(tokenID, to)
	return nil
}

// TokenBalance returns the fungible balance of addr for the given token
// contract address, zero if absent.
func (m *Manager) TokenBalance(token, addr [20]byte) (*big.Int, error) {
	data, ok, err := m.read(balanceKey(token, addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("state: decode balance: %w", err)
	}
	return balance, nil
}

// TokenSetBalance writes the balance record for addr.
func (m *Manager) TokenSetBalance(token, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	return m.writeRLP(balanceKey(token, addr), amount)
}

// TokenTransfer moves amount from one account to another within a token's
// balance space, failing if the sender's balance is insufficient.
func (m *Manager) TokenTransfer(token, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: transfer amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := m.TokenBalance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer is net zero. Writing both legs would read the
	// recipient balance before the debit lands and credit on top of it.
	if from == to {
		return nil
	}
	toBal, err := m.TokenBalance(token, to)
	if err != nil {
		return err
	}
	if err := m.TokenSetBalance(token, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.TokenSetBalance(token, to, new(big.Int).Add(toBal, amount))
}
