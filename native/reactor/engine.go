package reactor

import (
	"errors"
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"lukechampine.com/blake3"

	"gluon/core/events"
	coretypes "gluon/core/types"
	"gluon/crypto"
	nativecommon "gluon/native/common"
	"gluon/native/token"
)

var (
	errNilAccounts         = errors.New("reactor: account state not configured")
	errInvalidAmount       = errors.New("reactor: amount must be positive")
	errZeroAddress         = errors.New("reactor: zero address")
	errInsufficientBalance = errors.New("reactor: insufficient balance")
	// ErrAmountTooSmall indicates the deposit was consumed entirely by fees or
	// truncation left nothing to allocate.
	ErrAmountTooSmall = errors.New("reactor: amount too small")
	// ErrReserveExhausted indicates a drained reserve while claim supplies are
	// still outstanding.
	ErrReserveExhausted = errors.New("reactor: reserve exhausted")
	// ErrEmptyPool indicates a retirement against a pool with no reserve or no
	// outstanding claims.
	ErrEmptyPool = errors.New("reactor: empty pool")

	errSupplyOverflow = errors.New("reactor: claim supply exceeds 256 bits")
)

const moduleName = "reactor"

// bootstrapValueSplit fixes the share of a bootstrap deposit's peg value
// allocated to the neutron claim: exactly one third. This is a policy
// constant establishing the initial backing ratio of an empty pool, not a
// derived quantity.
const bootstrapValueSplit = 3

// AccountState exposes the native-balance accounts used to pay oracle update
// fees.
type AccountState interface {
	GetAccount(addr crypto.Address) (*coretypes.Account, error)
	PutAccount(addr crypto.Address, account *coretypes.Account) error
}

// ModuleAddress derives the deterministic module account for a reactor from
// its collateral symbol. The module account holds the reserve and is the sole
// minter of both claim tokens.
func ModuleAddress(collateralSymbol string) crypto.Address {
	h := blake3.New(32, nil)
	h.Write([]byte("reactor/module/"))
	h.Write([]byte(collateralSymbol))
	sum := h.Sum(nil)
	return crypto.NewAddress(crypto.GluonPrefix, sum[:20])
}

// Engine is the reactor state machine. All public operations run under a
// reentrancy latch and either fully commit or leave every ledger untouched.
// The oracle push is the only external effect ahead of the commit point; the
// update fee it quotes is staged and settled with the rest of the operation,
// and every balance move after the commit point is prechecked so it cannot
// fail once the snapshot and record have been persisted.
type Engine struct {
	params     Params
	moduleAddr crypto.Address

	collateral *token.Token
	neutron    *token.Token
	proton     *token.Token

	adapter *PriceAdapter
	decay   *FeeDecayLedger

	accounts      AccountState
	oracleFeeAddr crypto.Address
	pauses        nativecommon.PauseView
	latch         nativecommon.Latch
	emitter       events.Emitter
	store         *Store
	now           func() time.Time
}

// NewEngine constructs a reactor over an existing collateral ledger, creating
// both claim ledgers with the module account as their minter.
func NewEngine(params Params, collateral *token.Token, oracle Oracle, genesis int64) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if collateral == nil {
		return nil, errors.New("reactor: collateral ledger required")
	}
	moduleAddr := ModuleAddress(params.CollateralSymbol)
	neutron, err := token.New(params.NeutronName, params.NeutronSymbol, 18, moduleAddr)
	if err != nil {
		return nil, err
	}
	proton, err := token.New(params.ProtonName, params.ProtonSymbol, 18, moduleAddr)
	if err != nil {
		return nil, err
	}
	adapter, err := NewPriceAdapter(oracle, params.FeedID, params.MaxPriceAge)
	if err != nil {
		return nil, err
	}
	decay, err := NewFeeDecayLedger(params.Phi0Wad, params.Phi1Wad, params.DecayPerSecondWad, genesis)
	if err != nil {
		return nil, err
	}
	return &Engine{
		params:     params.Clone(),
		moduleAddr: moduleAddr,
		collateral: collateral,
		neutron:    neutron,
		proton:     proton,
		adapter:    adapter,
		decay:      decay,
		emitter:    events.NoopEmitter{},
		now:        time.Now,
	}, nil
}

// SetAccounts wires the native account state used for oracle fee settlement.
func (e *Engine) SetAccounts(accounts AccountState, oracleFeeAddr crypto.Address) {
	if e == nil {
		return
	}
	e.accounts = accounts
	e.oracleFeeAddr = oracleFeeAddr
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil || emitter == nil {
		return
	}
	e.emitter = emitter
}

// SetStore wires the persistence layer for state snapshots and operation
// records.
func (e *Engine) SetStore(store *Store) {
	if e == nil {
		return
	}
	e.store = store
}

// SetClock overrides the time source (primarily for deterministic testing).
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.now = now
	e.adapter.SetClock(now)
}

// Params returns a copy of the deployment configuration.
func (e *Engine) Params() Params { return e.params.Clone() }

// ModuleAccount returns the reserve-holding module address.
func (e *Engine) ModuleAccount() crypto.Address { return e.moduleAddr }

// Neutron returns the stable claim ledger.
func (e *Engine) Neutron() *token.Token { return e.neutron }

// Proton returns the volatile claim ledger.
func (e *Engine) Proton() *token.Token { return e.proton }

// Collateral returns the collateral ledger the reactor draws on.
func (e *Engine) Collateral() *token.Token { return e.collateral }

// Reserve returns the collateral balance held by the reactor.
func (e *Engine) Reserve() *big.Int {
	return e.collateral.BalanceOf(e.moduleAddr)
}

// Snapshot returns the current reactor state.
func (e *Engine) Snapshot() *State {
	phi0, phi1, decayPerSecond := e.decay.Params()
	return &State{
		Collateral:        e.params.CollateralSymbol,
		Reserve:           e.Reserve(),
		NeutronSupply:     e.neutron.TotalSupply(),
		ProtonSupply:      e.proton.TotalSupply(),
		Phi0Wad:           phi0,
		Phi1Wad:           phi1,
		DecayPerSecondWad: decayPerSecond,
		DecayedVolume:     e.decay.Volume(),
		LastDecayAdvance:  e.decay.LastAdvance(),
	}
}

// PricingView reports the informational pricing derived from the unsafe
// oracle read. It is never used for state-changing math.
type PricingView struct {
	PriceWad        *big.Int
	BackingFraction *big.Int
	NeutronPriceWad *big.Int
	ProtonPriceWad  *big.Int
}

// Pricing computes the informational view from the latest oracle sample.
func (e *Engine) Pricing() (*PricingView, error) {
	price, err := e.adapter.Current()
	if err != nil {
		return nil, err
	}
	return e.pricingAt(price)
}

func (e *Engine) pricingAt(priceWad *big.Int) (*PricingView, error) {
	reserve := e.Reserve()
	sN := e.neutron.TotalSupply()
	sP := e.proton.TotalSupply()
	q, err := BackingFraction(reserve, sN, priceWad, e.params.CriticalRatioWad)
	if err != nil {
		return nil, err
	}
	neutronPrice, err := NeutronPrice(reserve, sN, priceWad, e.params.CriticalRatioWad)
	if err != nil {
		return nil, err
	}
	protonPrice, err := ProtonPrice(reserve, sN, sP, priceWad, e.params.CriticalRatioWad)
	if err != nil {
		return nil, err
	}
	return &PricingView{
		PriceWad:        new(big.Int).Set(priceWad),
		BackingFraction: q,
		NeutronPriceWad: neutronPrice,
		ProtonPriceWad:  protonPrice,
	}, nil
}

// Fission splits a collateral deposit into both claims. The flat issuance fee
// is routed to the treasury; an optional oracle update is pushed first, with
// its fee drawn from attachedValue and the unconsumed remainder reported back
// as the refund.
func (e *Engine) Fission(caller, recipient crypto.Address, amountIn, attachedValue *big.Int, oracleUpdate [][]byte) (*FissionResult, error) {
	if err := e.latch.Acquire(); err != nil {
		return nil, err
	}
	defer e.latch.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if caller.IsZero() || recipient.IsZero() {
		return nil, errZeroAddress
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	reserveBefore := e.Reserve()
	neutronSupply := e.neutron.TotalSupply()
	protonSupply := e.proton.TotalSupply()

	settlement, err := e.quoteOracleFee(caller, attachedValue, oracleUpdate)
	if err != nil {
		return nil, err
	}

	fee, err := MulWad(amountIn, e.params.FissionFeeWad)
	if err != nil {
		return nil, err
	}
	net := new(big.Int).Sub(amountIn, fee)
	if net.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}

	var neutronOut, protonOut *big.Int
	bootstrap := reserveBefore.Sign() == 0 && neutronSupply.Sign() == 0 && protonSupply.Sign() == 0
	if bootstrap {
		price, err := e.adapter.NoOlderThan()
		if err != nil {
			return nil, err
		}
		third := new(big.Int).Quo(net, big.NewInt(bootstrapValueSplit))
		neutronOut, err = MulWad(third, price)
		if err != nil {
			return nil, err
		}
		protonOut = new(big.Int).Sub(net, third)
	} else {
		if reserveBefore.Sign() == 0 {
			return nil, ErrReserveExhausted
		}
		neutronOut = big.NewInt(0)
		protonOut = big.NewInt(0)
		if neutronSupply.Sign() > 0 {
			neutronOut, err = MulDiv(net, neutronSupply, reserveBefore)
			if err != nil {
				return nil, err
			}
		}
		if protonSupply.Sign() > 0 {
			protonOut, err = MulDiv(net, protonSupply, reserveBefore)
			if err != nil {
				return nil, err
			}
		}
	}
	if neutronOut.Sign() == 0 && protonOut.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}

	if e.collateral.BalanceOf(caller).Cmp(amountIn) < 0 {
		return nil, token.ErrInsufficientBalance
	}
	if e.collateral.Allowance(caller, e.moduleAddr).Cmp(amountIn) < 0 {
		return nil, token.ErrInsufficientAllowance
	}

	staged := e.Snapshot()
	staged.Reserve = new(big.Int).Add(reserveBefore, net)
	staged.NeutronSupply = new(big.Int).Add(neutronSupply, neutronOut)
	staged.ProtonSupply = new(big.Int).Add(protonSupply, protonOut)
	if err := checkSupplyBounds(staged.NeutronSupply, staged.ProtonSupply); err != nil {
		return nil, err
	}

	// Commit point. The snapshot and record land first so a storage failure
	// aborts before any balance moves; every step after the store write has
	// been prechecked above and cannot fail.
	now := e.now().Unix()
	if err := e.persist(staged, &OperationRecord{
		Kind:         OpFission,
		Collateral:   e.params.CollateralSymbol,
		Payer:        caller,
		Recipient:    recipient,
		AmountIn:     new(big.Int).Set(amountIn),
		NeutronDelta: new(big.Int).Set(neutronOut),
		ProtonDelta:  new(big.Int).Set(protonOut),
		Fee:          new(big.Int).Set(fee),
		Timestamp:    now,
	}); err != nil {
		return nil, err
	}
	if err := e.commitOracleFee(caller, settlement); err != nil {
		return nil, err
	}
	if err := e.collateral.TransferFrom(e.moduleAddr, caller, e.moduleAddr, amountIn); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.collateral.Transfer(e.moduleAddr, e.params.Treasury, fee); err != nil {
			return nil, err
		}
	}
	if neutronOut.Sign() > 0 {
		if err := e.neutron.Mint(e.moduleAddr, recipient, neutronOut); err != nil {
			return nil, err
		}
	}
	if protonOut.Sign() > 0 {
		if err := e.proton.Mint(e.moduleAddr, recipient, protonOut); err != nil {
			return nil, err
		}
	}

	e.emitter.Emit(events.Fission{
		Collateral: e.params.CollateralSymbol,
		Payer:      caller,
		Recipient:  recipient,
		AmountIn:   new(big.Int).Set(amountIn),
		NeutronOut: new(big.Int).Set(neutronOut),
		ProtonOut:  new(big.Int).Set(protonOut),
		Fee:        new(big.Int).Set(fee),
	})
	if settlement.feePaid.Sign() > 0 {
		e.emitter.Emit(events.PriceUpdate{
			Collateral: e.params.CollateralSymbol,
			Payer:      caller,
			FeePaid:    new(big.Int).Set(settlement.feePaid),
			Refunded:   new(big.Int).Set(settlement.refund),
		})
	}

	return &FissionResult{
		AmountIn:   new(big.Int).Set(amountIn),
		Fee:        fee,
		NeutronOut: neutronOut,
		ProtonOut:  protonOut,
		Refund:     settlement.refund,
	}, nil
}

// Fusion retires both claims proportionally to the requested collateral
// amount. Burns are sized against the live reserve, so callers must hold at
// least the computed claim quantities.
func (e *Engine) Fusion(caller, recipient crypto.Address, amount *big.Int) (*FusionResult, error) {
	if err := e.latch.Acquire(); err != nil {
		return nil, err
	}
	defer e.latch.Release()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if caller.IsZero() || recipient.IsZero() {
		return nil, errZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	reserve := e.Reserve()
	neutronSupply := e.neutron.TotalSupply()
	protonSupply := e.proton.TotalSupply()
	if reserve.Sign() == 0 || neutronSupply.Sign() == 0 || protonSupply.Sign() == 0 {
		return nil, ErrEmptyPool
	}

	neutronBurn, err := MulDiv(amount, neutronSupply, reserve)
	if err != nil {
		return nil, err
	}
	protonBurn, err := MulDiv(amount, protonSupply, reserve)
	if err != nil {
		return nil, err
	}
	if neutronBurn.Sign() == 0 && protonBurn.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}
	if e.neutron.BalanceOf(caller).Cmp(neutronBurn) < 0 {
		return nil, errInsufficientBalance
	}
	if e.proton.BalanceOf(caller).Cmp(protonBurn) < 0 {
		return nil, errInsufficientBalance
	}
	if reserve.Cmp(amount) < 0 {
		return nil, errInsufficientBalance
	}

	fee, err := MulWad(amount, e.params.FusionFeeWad)
	if err != nil {
		return nil, err
	}
	net := new(big.Int).Sub(amount, fee)
	if net.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}

	staged := e.Snapshot()
	staged.Reserve = new(big.Int).Sub(reserve, amount)
	staged.NeutronSupply = new(big.Int).Sub(neutronSupply, neutronBurn)
	staged.ProtonSupply = new(big.Int).Sub(protonSupply, protonBurn)

	now := e.now().Unix()
	if err := e.persist(staged, &OperationRecord{
		Kind:         OpFusion,
		Collateral:   e.params.CollateralSymbol,
		Payer:        caller,
		Recipient:    recipient,
		AmountIn:     new(big.Int).Set(amount),
		NeutronDelta: new(big.Int).Neg(neutronBurn),
		ProtonDelta:  new(big.Int).Neg(protonBurn),
		Fee:          new(big.Int).Set(fee),
		Timestamp:    now,
	}); err != nil {
		return nil, err
	}
	if neutronBurn.Sign() > 0 {
		if err := e.neutron.Burn(e.moduleAddr, caller, neutronBurn); err != nil {
			return nil, err
		}
	}
	if protonBurn.Sign() > 0 {
		if err := e.proton.Burn(e.moduleAddr, caller, protonBurn); err != nil {
			return nil, err
		}
	}
	if fee.Sign() > 0 {
		if err := e.collateral.Transfer(e.moduleAddr, e.params.Treasury, fee); err != nil {
			return nil, err
		}
	}
	if err := e.collateral.Transfer(e.moduleAddr, recipient, net); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.Fusion{
		Collateral:  e.params.CollateralSymbol,
		Caller:      caller,
		Recipient:   recipient,
		AmountOut:   new(big.Int).Set(net),
		NeutronBurn: new(big.Int).Set(neutronBurn),
		ProtonBurn:  new(big.Int).Set(protonBurn),
		Fee:         new(big.Int).Set(fee),
	})

	return &FusionResult{
		AmountOut:   net,
		Fee:         fee,
		NeutronBurn: neutronBurn,
		ProtonBurn:  protonBurn,
	}, nil
}

// UpdateFeeParams replaces the decay fee parameters. Only the configured
// authority may call it. The ledger is advanced under the old decay rate
// before the new one takes effect.
func (e *Engine) UpdateFeeParams(caller crypto.Address, phi0, phi1, decayPerSecond *big.Int) error {
	if err := e.latch.Acquire(); err != nil {
		return err
	}
	defer e.latch.Release()
	if !addressesEqual(caller, e.params.Authority) {
		return ErrUnauthorized
	}
	now := e.now().Unix()
	if err := e.decay.Advance(now); err != nil {
		return err
	}
	if err := e.decay.SetParams(phi0, phi1, decayPerSecond); err != nil {
		return err
	}
	e.emitter.Emit(events.FeeParamsChange{
		Collateral:     e.params.CollateralSymbol,
		Authority:      caller,
		Phi0Wad:        new(big.Int).Set(phi0),
		Phi1Wad:        new(big.Int).Set(phi1),
		DecayPerSecond: new(big.Int).Set(decayPerSecond),
		UpdatedAt:      now,
	})
	return e.persist(e.Snapshot(), &OperationRecord{
		Kind:       OpFeeParams,
		Collateral: e.params.CollateralSymbol,
		Payer:      caller,
		Timestamp:  now,
	})
}

// oracleSettlement is a quoted but unapplied update fee. The debit and the
// collector credit are deferred to commitOracleFee so an operation that fails
// after the push leaves the caller's native balance untouched.
type oracleSettlement struct {
	feePaid *big.Int
	refund  *big.Int
}

// quoteOracleFee pushes the optional oracle update and quotes its fee against
// the attached value. The caller's native balance is verified to cover the
// attachment but no account is written.
func (e *Engine) quoteOracleFee(caller crypto.Address, attached *big.Int, update [][]byte) (*oracleSettlement, error) {
	if len(update) == 0 {
		return &oracleSettlement{feePaid: big.NewInt(0), refund: cloneOrZero(attached)}, nil
	}
	if e.accounts == nil {
		return nil, errNilAccounts
	}
	value := cloneOrZero(attached)
	account, err := e.accounts.GetAccount(caller)
	if err != nil {
		return nil, err
	}
	if account == nil || account.BalanceGLU == nil || account.BalanceGLU.Cmp(value) < 0 {
		return nil, errInsufficientBalance
	}
	feePaid, refund, err := e.adapter.PushUpdate(update, value)
	if err != nil {
		return nil, err
	}
	return &oracleSettlement{feePaid: feePaid, refund: refund}, nil
}

// commitOracleFee applies a quoted settlement: the fee moves from the caller
// to the collector. Only the fee ever moves, so the refund-on-exit contract
// reduces to never debiting the unconsumed remainder.
func (e *Engine) commitOracleFee(caller crypto.Address, settlement *oracleSettlement) error {
	if settlement.feePaid.Sign() == 0 {
		return nil
	}
	account, err := e.accounts.GetAccount(caller)
	if err != nil {
		return err
	}
	if account == nil || account.BalanceGLU == nil || account.BalanceGLU.Cmp(settlement.feePaid) < 0 {
		return errInsufficientBalance
	}
	account.BalanceGLU = new(big.Int).Sub(account.BalanceGLU, settlement.feePaid)
	if err := e.accounts.PutAccount(caller, account); err != nil {
		return err
	}
	collector, err := e.accounts.GetAccount(e.oracleFeeAddr)
	if err != nil {
		return err
	}
	if collector == nil {
		collector = coretypes.NewAccount()
	}
	collector.BalanceGLU = new(big.Int).Add(collector.BalanceGLU, settlement.feePaid)
	return e.accounts.PutAccount(e.oracleFeeAddr, collector)
}

func (e *Engine) persist(state *State, record *OperationRecord) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.PutState(state); err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	return e.store.AppendRecord(record)
}

func checkSupplyBounds(supplies ...*big.Int) error {
	for _, supply := range supplies {
		if _, overflow := uint256.FromBig(supply); overflow {
			return errSupplyOverflow
		}
	}
	return nil
}

func addressesEqual(a, b crypto.Address) bool {
	return string(a.Bytes()) == string(b.Bytes())
}
