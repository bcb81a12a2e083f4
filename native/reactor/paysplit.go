package reactor

import (
	"errors"
	"math/big"

	"gluon/crypto"
)

var errSplitterNotConfigured = errors.New("reactor: payment splitter not configured")

// PaymentSplitter performs a single fission with itself as the recipient and
// forwards the resulting neutron balance to a merchant while returning the
// proton balance to the payer. Forwarded amounts are the balance deltas
// observed around the fission call, so pre-existing balances on the splitter
// account are left untouched.
type PaymentSplitter struct {
	engine  *Engine
	account crypto.Address
}

// SplitResult reports the amounts forwarded by a split payment.
type SplitResult struct {
	Fission        *FissionResult
	NeutronForward *big.Int
	ProtonForward  *big.Int
}

// NewPaymentSplitter binds a splitter account to a reactor.
func NewPaymentSplitter(engine *Engine, account crypto.Address) (*PaymentSplitter, error) {
	if engine == nil {
		return nil, errSplitterNotConfigured
	}
	if account.IsZero() {
		return nil, errZeroAddress
	}
	return &PaymentSplitter{engine: engine, account: account}, nil
}

// Pay pulls the payer's collateral through a fission and routes the stable
// claim to the merchant and the volatile claim back to the payer.
func (p *PaymentSplitter) Pay(payer, merchant crypto.Address, amountIn, attachedValue *big.Int, oracleUpdate [][]byte) (*SplitResult, error) {
	if p == nil || p.engine == nil {
		return nil, errSplitterNotConfigured
	}
	if payer.IsZero() || merchant.IsZero() {
		return nil, errZeroAddress
	}

	neutronBefore := p.engine.Neutron().BalanceOf(p.account)
	protonBefore := p.engine.Proton().BalanceOf(p.account)

	result, err := p.engine.Fission(payer, p.account, amountIn, attachedValue, oracleUpdate)
	if err != nil {
		return nil, err
	}

	neutronDelta := new(big.Int).Sub(p.engine.Neutron().BalanceOf(p.account), neutronBefore)
	protonDelta := new(big.Int).Sub(p.engine.Proton().BalanceOf(p.account), protonBefore)

	if neutronDelta.Sign() > 0 {
		if err := p.engine.Neutron().Transfer(p.account, merchant, neutronDelta); err != nil {
			return nil, err
		}
	}
	if protonDelta.Sign() > 0 {
		if err := p.engine.Proton().Transfer(p.account, payer, protonDelta); err != nil {
			return nil, err
		}
	}

	return &SplitResult{
		Fission:        result,
		NeutronForward: neutronDelta,
		ProtonForward:  protonDelta,
	}, nil
}
