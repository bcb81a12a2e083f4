package reactor

import (
	"errors"
	"fmt"
	"math/big"
)

var errClockBackwards = errors.New("reactor: decay clock moved backwards")

// DecayDirection selects which side of the signed volume a fee quote reads.
type DecayDirection int

const (
	// DecayPlus prices proton to neutron conversions (excess neutron demand).
	DecayPlus DecayDirection = iota
	// DecayMinus prices neutron to proton conversions (excess proton demand).
	DecayMinus
)

// FeeDecayLedger maintains the signed, exponentially decaying running volume
// of net conversion flow. Positive values record excess neutron demand,
// negative values excess proton demand. The accumulator is only ever touched
// through the advance-then-read sequence: AdvanceAndQuote decays the value for
// elapsed time and returns the directional fee from the pre-update volume, and
// Record folds the operation's own flow in afterwards.
type FeeDecayLedger struct {
	phi0           *big.Int
	phi1           *big.Int
	decayPerSecond *big.Int
	volume         *big.Int
	lastAdvance    int64
}

// NewFeeDecayLedger constructs a ledger with the supplied wad-scaled
// parameters. A decayPerSecond equal to wad is the no-decay sentinel.
func NewFeeDecayLedger(phi0, phi1, decayPerSecond *big.Int, now int64) (*FeeDecayLedger, error) {
	for name, v := range map[string]*big.Int{"phi0": phi0, "phi1": phi1, "decayPerSecond": decayPerSecond} {
		if v == nil || v.Sign() < 0 || v.Cmp(wad) > 0 {
			return nil, fmt.Errorf("reactor: %s must be within [0, 1e18]", name)
		}
	}
	return &FeeDecayLedger{
		phi0:           new(big.Int).Set(phi0),
		phi1:           new(big.Int).Set(phi1),
		decayPerSecond: new(big.Int).Set(decayPerSecond),
		volume:         big.NewInt(0),
		lastAdvance:    now,
	}, nil
}

// Volume returns the accumulator as of the last advance.
func (l *FeeDecayLedger) Volume() *big.Int {
	return new(big.Int).Set(l.volume)
}

// LastAdvance returns the unix timestamp of the last decay advance.
func (l *FeeDecayLedger) LastAdvance() int64 { return l.lastAdvance }

// Params returns copies of phi0, phi1 and decayPerSecond.
func (l *FeeDecayLedger) Params() (phi0, phi1, decayPerSecond *big.Int) {
	return new(big.Int).Set(l.phi0), new(big.Int).Set(l.phi1), new(big.Int).Set(l.decayPerSecond)
}

// SetParams replaces the fee parameters. Validation matches the constructor.
func (l *FeeDecayLedger) SetParams(phi0, phi1, decayPerSecond *big.Int) error {
	for name, v := range map[string]*big.Int{"phi0": phi0, "phi1": phi1, "decayPerSecond": decayPerSecond} {
		if v == nil || v.Sign() < 0 || v.Cmp(wad) > 0 {
			return fmt.Errorf("reactor: %s must be within [0, 1e18]", name)
		}
	}
	l.phi0 = new(big.Int).Set(phi0)
	l.phi1 = new(big.Int).Set(phi1)
	l.decayPerSecond = new(big.Int).Set(decayPerSecond)
	return nil
}

// AdvanceAndQuote decays the accumulator for the time elapsed since the last
// advance, then returns the wad-scaled fee for the supplied direction computed
// from the decayed volume. Combining the two steps keeps the call order fixed:
// a fee can never be read from an un-decayed volume.
func (l *FeeDecayLedger) AdvanceAndQuote(now int64, direction DecayDirection, reserve *big.Int) (*big.Int, error) {
	if err := l.advance(now); err != nil {
		return nil, err
	}
	return l.fee(direction, reserve)
}

// Advance decays the accumulator for elapsed time without reading a fee. It
// exists for parameter changes, which must settle the old decay rate before a
// new one takes effect.
func (l *FeeDecayLedger) Advance(now int64) error {
	return l.advance(now)
}

// Record folds a completed conversion's gross collateral value into the
// accumulator. The sign is positive for neutron-producing conversions and
// negative for proton-producing ones. Callers must have advanced the ledger in
// the same operation via AdvanceAndQuote.
func (l *FeeDecayLedger) Record(signedGross *big.Int) {
	if signedGross == nil || signedGross.Sign() == 0 {
		return
	}
	l.volume = new(big.Int).Add(l.volume, signedGross)
}

func (l *FeeDecayLedger) advance(now int64) error {
	if now < l.lastAdvance {
		return errClockBackwards
	}
	dt := now - l.lastAdvance
	if dt == 0 {
		return nil
	}
	if l.decayPerSecond.Cmp(wad) == 0 {
		l.lastAdvance = now
		return nil
	}
	factor, err := PowWad(l.decayPerSecond, uint64(dt))
	if err != nil {
		return err
	}
	// Quo truncates toward zero, so the sign of the volume is preserved.
	scaled := new(big.Int).Mul(l.volume, factor)
	l.volume = scaled.Quo(scaled, wad)
	l.lastAdvance = now
	return nil
}

func (l *FeeDecayLedger) fee(direction DecayDirection, reserve *big.Int) (*big.Int, error) {
	if reserve == nil || reserve.Sign() == 0 {
		// Saturated: conversions against an empty pool are fully taxed away.
		return Wad(), nil
	}
	if l.phi0.Sign() == 0 && l.phi1.Sign() == 0 {
		return big.NewInt(0), nil
	}
	magnitude := new(big.Int).Set(l.volume)
	if direction == DecayMinus {
		magnitude.Neg(magnitude)
	}
	if magnitude.Sign() < 0 {
		magnitude = big.NewInt(0)
	}
	variable, err := MulDiv(l.phi1, magnitude, reserve)
	if err != nil {
		return nil, err
	}
	fee := new(big.Int).Add(l.phi0, variable)
	return minBig(fee, wad), nil
}
