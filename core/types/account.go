package types

import "math/big"

// Account tracks the native-value balance used to pay oracle update fees along
// with the usual replay-protection nonce. Collateral and claim balances live in
// their token ledgers, not here.
type Account struct {
	Nonce      uint64   `json:"nonce"`
	BalanceGLU *big.Int `json:"balanceGLU"`
}

// NewAccount returns an account with a zeroed balance so callers never observe
// a nil big.Int.
func NewAccount() *Account {
	return &Account{BalanceGLU: big.NewInt(0)}
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, BalanceGLU: big.NewInt(0)}
	if a.BalanceGLU != nil {
		clone.BalanceGLU = new(big.Int).Set(a.BalanceGLU)
	}
	return clone
}
