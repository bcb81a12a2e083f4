package reactor

import (
	"math/big"

	"gluon/core/events"
	"gluon/crypto"
	nativecommon "gluon/native/common"
)

// BetaDecayMinus converts neutrons into protons: the stable claim is burned,
// valued in collateral at the pre-burn snapshot, taxed by the deficit
// direction decay fee, and the net value is minted as protons.
func (e *Engine) BetaDecayMinus(caller, recipient crypto.Address, neutronIn, attachedValue *big.Int, oracleUpdate [][]byte) (*DecayResult, error) {
	return e.betaDecay(caller, recipient, neutronIn, attachedValue, oracleUpdate, false)
}

// BetaDecayPlus converts protons into neutrons, the mirror image of
// BetaDecayMinus with the excess direction fee.
func (e *Engine) BetaDecayPlus(caller, recipient crypto.Address, protonIn, attachedValue *big.Int, oracleUpdate [][]byte) (*DecayResult, error) {
	return e.betaDecay(caller, recipient, protonIn, attachedValue, oracleUpdate, true)
}

func (e *Engine) betaDecay(caller, recipient crypto.Address, amountIn, attachedValue *big.Int, oracleUpdate [][]byte, plus bool) (*DecayResult, error) {
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

	settlement, err := e.quoteOracleFee(caller, attachedValue, oracleUpdate)
	if err != nil {
		return nil, err
	}

	price, err := e.adapter.NoOlderThan()
	if err != nil {
		return nil, err
	}

	// Pre-burn supply snapshot: both prices are taken before any ledger
	// mutation so the conversion never prices against itself.
	reserve := e.Reserve()
	neutronSupply := e.neutron.TotalSupply()
	protonSupply := e.proton.TotalSupply()

	neutronPrice, err := NeutronPrice(reserve, neutronSupply, price, e.params.CriticalRatioWad)
	if err != nil {
		return nil, err
	}
	protonPrice, err := ProtonPrice(reserve, neutronSupply, protonSupply, price, e.params.CriticalRatioWad)
	if err != nil {
		return nil, err
	}
	if neutronPrice.Sign() <= 0 || protonPrice.Sign() <= 0 {
		return nil, ErrBadPrice
	}

	var source, target = e.neutron, e.proton
	inPrice, outPrice := neutronPrice, protonPrice
	direction := DecayMinus
	if plus {
		source, target = e.proton, e.neutron
		inPrice, outPrice = protonPrice, neutronPrice
		direction = DecayPlus
	}
	if source.BalanceOf(caller).Cmp(amountIn) < 0 {
		return nil, errInsufficientBalance
	}

	gross, err := MulWad(amountIn, inPrice)
	if err != nil {
		return nil, err
	}
	feeWad, err := e.decay.AdvanceAndQuote(e.now().Unix(), direction, reserve)
	if err != nil {
		return nil, err
	}
	retained := new(big.Int).Sub(wad, feeWad)
	netValue, err := MulWad(gross, retained)
	if err != nil {
		return nil, err
	}
	amountOut, err := DivWad(netValue, outPrice)
	if err != nil {
		return nil, err
	}
	if amountOut.Sign() == 0 {
		return nil, ErrAmountTooSmall
	}

	signed := new(big.Int).Set(gross)
	if !plus {
		signed.Neg(signed)
	}
	kind := OpDecayMinus
	neutronDelta := new(big.Int).Neg(amountIn)
	protonDelta := new(big.Int).Set(amountOut)
	if plus {
		kind = OpDecayPlus
		neutronDelta = new(big.Int).Set(amountOut)
		protonDelta = new(big.Int).Neg(amountIn)
	}

	staged := e.Snapshot()
	staged.NeutronSupply = new(big.Int).Add(neutronSupply, neutronDelta)
	staged.ProtonSupply = new(big.Int).Add(protonSupply, protonDelta)
	staged.DecayedVolume = new(big.Int).Add(e.decay.Volume(), signed)
	if err := checkSupplyBounds(staged.NeutronSupply, staged.ProtonSupply); err != nil {
		return nil, err
	}
	volume := staged.DecayedVolume

	// Commit point, same sequencing as Fission: store write first, then the
	// prechecked ledger moves.
	now := e.now().Unix()
	if err := e.persist(staged, &OperationRecord{
		Kind:          kind,
		Collateral:    e.params.CollateralSymbol,
		Payer:         caller,
		Recipient:     recipient,
		AmountIn:      new(big.Int).Set(amountIn),
		NeutronDelta:  neutronDelta,
		ProtonDelta:   protonDelta,
		FeeWad:        new(big.Int).Set(feeWad),
		GrossValue:    new(big.Int).Set(gross),
		DecayedVolume: new(big.Int).Set(volume),
		Timestamp:     now,
	}); err != nil {
		return nil, err
	}
	if err := e.commitOracleFee(caller, settlement); err != nil {
		return nil, err
	}
	if err := source.Burn(e.moduleAddr, caller, amountIn); err != nil {
		return nil, err
	}
	if err := target.Mint(e.moduleAddr, recipient, amountOut); err != nil {
		return nil, err
	}
	e.decay.Record(signed)

	e.emitter.Emit(events.BetaDecay{
		Collateral:    e.params.CollateralSymbol,
		Plus:          plus,
		Caller:        caller,
		Recipient:     recipient,
		AmountIn:      new(big.Int).Set(amountIn),
		AmountOut:     new(big.Int).Set(amountOut),
		GrossValue:    new(big.Int).Set(gross),
		FeeWad:        new(big.Int).Set(feeWad),
		DecayedVolume: new(big.Int).Set(volume),
	})
	if settlement.feePaid.Sign() > 0 {
		e.emitter.Emit(events.PriceUpdate{
			Collateral: e.params.CollateralSymbol,
			Payer:      caller,
			FeePaid:    new(big.Int).Set(settlement.feePaid),
			Refunded:   new(big.Int).Set(settlement.refund),
		})
	}

	return &DecayResult{
		AmountIn:      new(big.Int).Set(amountIn),
		AmountOut:     amountOut,
		GrossValue:    gross,
		FeeWad:        feeWad,
		DecayedVolume: new(big.Int).Set(volume),
		Refund:        settlement.refund,
	}, nil
}
