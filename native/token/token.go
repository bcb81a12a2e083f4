package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"gluon/crypto"
)

var (
	errInvalidAmount         = errors.New("token: amount must be positive")
	errZeroAddress           = errors.New("token: zero address")
	errNotMinter             = errors.New("token: caller is not the minter")
	errInsufficientBalance   = errors.New("token: insufficient balance")
	errInsufficientAllowance = errors.New("token: insufficient allowance")
	errSupplyOverflow        = errors.New("token: total supply exceeds 256 bits")
)

// ErrInsufficientBalance reports a transfer or burn exceeding the holder's
// balance.
var ErrInsufficientBalance = errInsufficientBalance

// ErrNotMinter reports a mint or burn attempted by anyone other than the
// configured minter.
var ErrNotMinter = errNotMinter

// ErrInsufficientAllowance reports a TransferFrom exceeding the spender's
// allowance.
var ErrInsufficientAllowance = errInsufficientAllowance

// Token is a fungible balance ledger. Mint and burn are restricted to a single
// minter account, which for claim tokens is the owning reactor's module
// address.
type Token struct {
	name     string
	symbol   string
	decimals uint8
	minter   crypto.Address

	mu         sync.RWMutex
	supply     *big.Int
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// New constructs an empty ledger. The minter is fixed for the token's
// lifetime.
func New(name, symbol string, decimals uint8, minter crypto.Address) (*Token, error) {
	name = strings.TrimSpace(name)
	symbol = strings.TrimSpace(symbol)
	if name == "" || symbol == "" {
		return nil, fmt.Errorf("token: name and symbol required")
	}
	if minter.IsZero() {
		return nil, errZeroAddress
	}
	return &Token{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		minter:     minter,
		supply:     big.NewInt(0),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}, nil
}

// Name returns the display name.
func (t *Token) Name() string { return t.name }

// Symbol returns the ticker symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the display decimal count.
func (t *Token) Decimals() uint8 { return t.decimals }

// Minter returns the account allowed to mint and burn.
func (t *Token) Minter() crypto.Address { return t.minter }

// TotalSupply returns the live supply.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.supply)
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(holder crypto.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if bal, ok := t.balances[key(holder)]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Transfer moves amount from the caller to the recipient.
func (t *Token) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := checkTransfer(from, to, amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// Approve sets the spender's allowance over the owner's balance.
func (t *Token) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if owner.IsZero() || spender.IsZero() {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	grants, ok := t.allowances[key(owner)]
	if !ok {
		grants = make(map[string]*big.Int)
		t.allowances[key(owner)] = grants
	}
	grants[key(spender)] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the spender's remaining allowance over the owner's
// balance.
func (t *Token) Allowance(owner, spender crypto.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if grants, ok := t.allowances[key(owner)]; ok {
		if granted, ok := grants[key(spender)]; ok {
			return new(big.Int).Set(granted)
		}
	}
	return big.NewInt(0)
}

// TransferFrom moves amount from the owner to the recipient, consuming the
// spender's allowance.
func (t *Token) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if spender.IsZero() {
		return errZeroAddress
	}
	if err := checkTransfer(from, to, amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	grants, ok := t.allowances[key(from)]
	if !ok {
		return errInsufficientAllowance
	}
	granted, ok := grants[key(spender)]
	if !ok || granted.Cmp(amount) < 0 {
		return errInsufficientAllowance
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	grants[key(spender)] = new(big.Int).Sub(granted, amount)
	return nil
}

// Mint creates amount for the recipient. Only the minter may call it.
func (t *Token) Mint(caller, to crypto.Address, amount *big.Int) error {
	if to.IsZero() {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !sameAddress(caller, t.minter) {
		return errNotMinter
	}
	next := new(big.Int).Add(t.supply, amount)
	if _, overflow := uint256.FromBig(next); overflow {
		return errSupplyOverflow
	}
	t.supply = next
	t.credit(to, amount)
	return nil
}

// Burn destroys amount held by the holder. Only the minter may call it.
func (t *Token) Burn(caller, holder crypto.Address, amount *big.Int) error {
	if holder.IsZero() {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !sameAddress(caller, t.minter) {
		return errNotMinter
	}
	bal, ok := t.balances[key(holder)]
	if !ok || bal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	t.balances[key(holder)] = new(big.Int).Sub(bal, amount)
	t.supply = new(big.Int).Sub(t.supply, amount)
	return nil
}

func (t *Token) move(from, to crypto.Address, amount *big.Int) error {
	bal, ok := t.balances[key(from)]
	if !ok || bal.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	t.balances[key(from)] = new(big.Int).Sub(bal, amount)
	t.credit(to, amount)
	return nil
}

func (t *Token) credit(to crypto.Address, amount *big.Int) {
	if bal, ok := t.balances[key(to)]; ok {
		t.balances[key(to)] = new(big.Int).Add(bal, amount)
		return
	}
	t.balances[key(to)] = new(big.Int).Set(amount)
}

func checkTransfer(from, to crypto.Address, amount *big.Int) error {
	if from.IsZero() || to.IsZero() {
		return errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return nil
}

func sameAddress(a, b crypto.Address) bool {
	return string(a.Bytes()) == string(b.Bytes())
}

func key(addr crypto.Address) string {
	return string(addr.Bytes())
}
