package token

import (
	"errors"
	"math/big"
	"testing"

	"gluon/crypto"
)

func addr(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = suffix
	return crypto.NewAddress(crypto.GluonPrefix, raw)
}

func newTestToken(t *testing.T, minter crypto.Address) *Token {
	t.Helper()
	tok, err := New("Neutron Claim", "nCOL", 18, minter)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	return tok
}

func TestNewValidatesMetadata(t *testing.T) {
	if _, err := New("", "nCOL", 18, addr(0x01)); err == nil {
		t.Fatalf("expected missing name rejection")
	}
	if _, err := New("Neutron Claim", "nCOL", 18, crypto.Address{}); err == nil {
		t.Fatalf("expected zero minter rejection")
	}
}

func TestMintRestrictedToMinter(t *testing.T) {
	minter := addr(0x01)
	holder := addr(0x02)
	tok := newTestToken(t, minter)

	if err := tok.Mint(holder, holder, big.NewInt(100)); !errors.Is(err, ErrNotMinter) {
		t.Fatalf("expected minter restriction, got %v", err)
	}
	if err := tok.Mint(minter, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected balance: %s", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected supply: %s", got)
	}
}

func TestBurnTracksSupply(t *testing.T) {
	minter := addr(0x01)
	holder := addr(0x02)
	tok := newTestToken(t, minter)
	if err := tok.Mint(minter, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tok.Burn(holder, holder, big.NewInt(10)); !errors.Is(err, ErrNotMinter) {
		t.Fatalf("expected minter restriction, got %v", err)
	}
	if err := tok.Burn(minter, holder, big.NewInt(150)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := tok.Burn(minter, holder, big.NewInt(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := tok.BalanceOf(holder); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected balance: %s", got)
	}
	if got := tok.TotalSupply(); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected supply: %s", got)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	minter := addr(0x01)
	from := addr(0x02)
	to := addr(0x03)
	tok := newTestToken(t, minter)
	if err := tok.Mint(minter, from, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tok.Transfer(from, to, big.NewInt(30)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(from); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("sender balance: %s", got)
	}
	if got := tok.BalanceOf(to); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("recipient balance: %s", got)
	}
	if err := tok.Transfer(from, to, big.NewInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := tok.Transfer(from, to, big.NewInt(0)); err == nil {
		t.Fatalf("expected zero amount rejection")
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	minter := addr(0x01)
	owner := addr(0x02)
	spender := addr(0x03)
	sink := addr(0x04)
	tok := newTestToken(t, minter)
	if err := tok.Mint(minter, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(10)); err == nil {
		t.Fatalf("expected missing allowance rejection")
	}
	if err := tok.Approve(owner, spender, big.NewInt(40)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(30)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := tok.Allowance(owner, spender); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("allowance not consumed: %s", got)
	}
	if err := tok.TransferFrom(spender, owner, sink, big.NewInt(20)); err == nil {
		t.Fatalf("expected exhausted allowance rejection")
	}
	if got := tok.BalanceOf(sink); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("recipient balance: %s", got)
	}
}
