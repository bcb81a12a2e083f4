package reactor

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"gluon/crypto"
)

var (
	errInvalidParams = errors.New("reactor: invalid parameters")
	// ErrUnauthorized indicates a fee parameter change attempted by anyone
	// other than the configured authority.
	ErrUnauthorized = errors.New("reactor: caller is not the fee authority")
)

// Params is the immutable configuration a reactor is deployed with. Fee decay
// parameters (phi0, phi1, decayPerSecond) seed the mutable ledger state and
// may later be replaced by the authority.
type Params struct {
	CollateralSymbol string
	NeutronName      string
	NeutronSymbol    string
	ProtonName       string
	ProtonSymbol     string

	FeedID      [32]byte
	MaxPriceAge uint64

	Treasury  crypto.Address
	Authority crypto.Address

	FissionFeeWad    *big.Int
	FusionFeeWad     *big.Int
	CriticalRatioWad *big.Int

	Phi0Wad           *big.Int
	Phi1Wad           *big.Int
	DecayPerSecondWad *big.Int
}

// Validate checks the bundle against the deployment invariants: flat fees
// strictly below 100%, critical ratio at least 100%, decay parameters within
// [0, 1], and complete metadata.
func (p Params) Validate() error {
	if strings.TrimSpace(p.CollateralSymbol) == "" {
		return fmt.Errorf("%w: collateral symbol required", errInvalidParams)
	}
	for _, field := range []string{p.NeutronName, p.NeutronSymbol, p.ProtonName, p.ProtonSymbol} {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: token metadata required", errInvalidParams)
		}
	}
	if p.MaxPriceAge == 0 {
		return fmt.Errorf("%w: max price age required", errInvalidParams)
	}
	if p.Treasury.IsZero() {
		return fmt.Errorf("%w: treasury address required", errInvalidParams)
	}
	if p.Authority.IsZero() {
		return fmt.Errorf("%w: fee authority address required", errInvalidParams)
	}
	for name, fee := range map[string]*big.Int{"fission fee": p.FissionFeeWad, "fusion fee": p.FusionFeeWad} {
		if fee == nil || fee.Sign() < 0 || fee.Cmp(wad) >= 0 {
			return fmt.Errorf("%w: %s must be within [0, 100%%)", errInvalidParams, name)
		}
	}
	if p.CriticalRatioWad == nil || p.CriticalRatioWad.Cmp(wad) < 0 {
		return fmt.Errorf("%w: critical ratio must be at least 100%%", errInvalidParams)
	}
	for name, v := range map[string]*big.Int{"phi0": p.Phi0Wad, "phi1": p.Phi1Wad, "decayPerSecond": p.DecayPerSecondWad} {
		if v == nil || v.Sign() < 0 || v.Cmp(wad) > 0 {
			return fmt.Errorf("%w: %s must be within [0, 100%%]", errInvalidParams, name)
		}
	}
	return nil
}

// Clone returns a deep copy of the bundle.
func (p Params) Clone() Params {
	clone := p
	clone.CollateralSymbol = strings.TrimSpace(p.CollateralSymbol)
	clone.FissionFeeWad = cloneOrZero(p.FissionFeeWad)
	clone.FusionFeeWad = cloneOrZero(p.FusionFeeWad)
	clone.CriticalRatioWad = cloneOrZero(p.CriticalRatioWad)
	clone.Phi0Wad = cloneOrZero(p.Phi0Wad)
	clone.Phi1Wad = cloneOrZero(p.Phi1Wad)
	clone.DecayPerSecondWad = cloneOrZero(p.DecayPerSecondWad)
	return clone
}
