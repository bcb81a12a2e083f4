package reactor

import (
	"errors"
	"math/big"
	"testing"

	coreevents "gluon/core/events"
)

func criticalOnePointTwo(p *Params) {
	p.CriticalRatioWad = big.NewInt(1_200_000_000_000_000_000)
}

func TestBetaDecayMinusValuesAtPreBurnSnapshot(t *testing.T) {
	h := newEngineHarness(t, criticalOnePointTwo)
	h.mustFission(t, wadMul(300))

	// reserve 300, neutron supply 200, price 2.0: the reserve ratio is 3.0,
	// q = 1/3, so one neutron is worth just under half a collateral unit and
	// one proton exactly one.
	wantGross, _ := new(big.Int).SetString("19999999999999999960", 10)
	res, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(40), nil, nil)
	if err != nil {
		t.Fatalf("beta decay minus: %v", err)
	}
	if res.GrossValue.Cmp(wantGross) != 0 {
		t.Fatalf("unexpected gross value: got %s want %s", res.GrossValue, wantGross)
	}
	if res.AmountOut.Cmp(wantGross) != 0 {
		t.Fatalf("unexpected proton out: got %s want %s", res.AmountOut, wantGross)
	}
	if res.FeeWad.Sign() != 0 {
		t.Fatalf("unexpected fee: %s", res.FeeWad)
	}
	wantVolume := new(big.Int).Neg(wantGross)
	if res.DecayedVolume.Cmp(wantVolume) != 0 {
		t.Fatalf("unexpected decayed volume: got %s want %s", res.DecayedVolume, wantVolume)
	}
	if got := h.engine.Neutron().BalanceOf(h.caller); got.Cmp(wadMul(160)) != 0 {
		t.Fatalf("unexpected neutron balance: %s", got)
	}
	wantProtons := new(big.Int).Add(wadMul(200), wantGross)
	if got := h.engine.Proton().BalanceOf(h.caller); got.Cmp(wantProtons) != 0 {
		t.Fatalf("unexpected proton balance: %s", got)
	}
	if h.engine.Reserve().Cmp(wadMul(300)) != 0 {
		t.Fatalf("conversion touched the reserve: %s", h.engine.Reserve())
	}

	types := h.emitter.types()
	if len(types) != 2 || types[1] != coreevents.TypeReactorDecayMinus {
		t.Fatalf("unexpected events: %v", types)
	}
}

func TestBetaDecayRoundTripIsNearNeutral(t *testing.T) {
	h := newEngineHarness(t, criticalOnePointTwo)
	h.mustFission(t, wadMul(300))

	minus, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(40), nil, nil)
	if err != nil {
		t.Fatalf("beta decay minus: %v", err)
	}
	if _, err := h.engine.BetaDecayPlus(h.caller, h.caller, minus.AmountOut, nil, nil); err != nil {
		t.Fatalf("beta decay plus: %v", err)
	}

	// Truncation in each leg can land a few base units either side of the
	// starting balance with zero fees, but never materially more.
	got := h.engine.Neutron().BalanceOf(h.caller)
	drift := new(big.Int).Sub(got, wadMul(200))
	if drift.CmpAbs(big.NewInt(1000)) > 0 {
		t.Fatalf("round trip drifted too far: %s (balance %s)", drift, got)
	}
}

func TestBetaDecayBaseFeeReducesOutput(t *testing.T) {
	fivePercent := big.NewInt(50_000_000_000_000_000)
	h := newEngineHarness(t, func(p *Params) {
		criticalOnePointTwo(p)
		p.Phi0Wad = fivePercent
	})
	h.mustFission(t, wadMul(300))

	res, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(40), nil, nil)
	if err != nil {
		t.Fatalf("beta decay minus: %v", err)
	}
	if res.FeeWad.Cmp(fivePercent) != 0 {
		t.Fatalf("unexpected fee: got %s want %s", res.FeeWad, fivePercent)
	}
	retained := new(big.Int).Sub(wad, fivePercent)
	wantOut, err := MulWad(res.GrossValue, retained)
	if err != nil {
		t.Fatalf("mulwad: %v", err)
	}
	if res.AmountOut.Cmp(wantOut) != 0 {
		t.Fatalf("unexpected amount out: got %s want %s", res.AmountOut, wantOut)
	}
}

func TestBetaDecayFeeIsDirectional(t *testing.T) {
	h := newEngineHarness(t, func(p *Params) {
		criticalOnePointTwo(p)
		p.Phi1Wad = big.NewInt(100_000_000_000_000_000)
	})
	h.mustFission(t, wadMul(300))

	first, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(40), nil, nil)
	if err != nil {
		t.Fatalf("first minus: %v", err)
	}
	if first.FeeWad.Sign() != 0 {
		t.Fatalf("first conversion in a quiet market must be free, fee %s", first.FeeWad)
	}

	// Accumulated one-sided flow makes the next conversion in the same
	// direction pay, while the opposite direction stays free.
	second, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(10), nil, nil)
	if err != nil {
		t.Fatalf("second minus: %v", err)
	}
	if second.FeeWad.Sign() <= 0 {
		t.Fatalf("expected congestion fee on repeated direction, got %s", second.FeeWad)
	}
	back, err := h.engine.BetaDecayPlus(h.caller, h.caller, wadMul(10), nil, nil)
	if err != nil {
		t.Fatalf("plus: %v", err)
	}
	if back.FeeWad.Sign() != 0 {
		t.Fatalf("opposite direction must be free, fee %s", back.FeeWad)
	}
}

func TestBetaDecayRejectsEmptyReserve(t *testing.T) {
	h := newEngineHarness(t, criticalOnePointTwo)
	if err := h.engine.Neutron().Mint(h.engine.ModuleAccount(), h.caller, wadMul(10)); err != nil {
		t.Fatalf("seed neutron supply: %v", err)
	}
	if _, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(10), nil, nil); !errors.Is(err, ErrBadPrice) {
		t.Fatalf("expected bad price, got %v", err)
	}
}

func TestBetaDecayRequiresSourceBalance(t *testing.T) {
	h := newEngineHarness(t, criticalOnePointTwo)
	h.mustFission(t, wadMul(300))

	if _, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(500), nil, nil); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if _, err := h.engine.BetaDecayPlus(h.other, h.other, wadMul(1), nil, nil); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestBetaDecayFailureLeavesOracleFeeUnspent(t *testing.T) {
	h := newEngineHarness(t, criticalOnePointTwo)
	h.mustFission(t, wadMul(300))
	h.oracle.updateFee = big.NewInt(7)
	h.accounts.fund(h.caller, 100)

	// The source balance check trips after the update push; the quoted fee
	// must not stay debited.
	if _, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(500), big.NewInt(10), [][]byte{{0xAA}}); !errors.Is(err, errInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := h.accounts.balance(h.caller); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed conversion kept the oracle fee debit: got %s want 100", got)
	}
	if got := h.accounts.balance(h.collector); got.Sign() != 0 {
		t.Fatalf("failed conversion credited the collector: %s", got)
	}
	if got := h.engine.Neutron().BalanceOf(h.caller); got.Cmp(wadMul(200)) != 0 {
		t.Fatalf("failed conversion burned claims: %s", got)
	}
}

func TestBetaDecayRequiresFreshPrice(t *testing.T) {
	h := newEngineHarness(t, criticalOnePointTwo)
	h.mustFission(t, wadMul(300))
	h.oracle.sample.PublishTime = testGenesis - 120

	if _, err := h.engine.BetaDecayMinus(h.caller, h.caller, wadMul(40), nil, nil); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
	if got := h.engine.Neutron().BalanceOf(h.caller); got.Cmp(wadMul(200)) != 0 {
		t.Fatalf("failed conversion burned claims: %s", got)
	}
}
