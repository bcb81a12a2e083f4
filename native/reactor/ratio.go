package reactor

import (
	"math/big"
)

// PegPerCollateral inverts a wad collateral price into pStar, the collateral
// units one unit of peg value is worth.
func PegPerCollateral(priceWad *big.Int) (*big.Int, error) {
	if priceWad == nil || priceWad.Sign() <= 0 {
		return nil, ErrBadPrice
	}
	return MulDiv(wad, wad, priceWad)
}

// BackingFraction computes q, the wad-scaled fraction of reserve value backing
// the neutron claim. criticalWad is the configured critical reserve ratio; the
// raw reserve ratio is dampened toward 1 below it so q does not spike near the
// undercollateralised boundary. The result is always in [0, wad].
func BackingFraction(reserve, neutronSupply, priceWad, criticalWad *big.Int) (*big.Int, error) {
	if reserve == nil || neutronSupply == nil {
		return nil, errNegativeInput
	}
	pStar, err := PegPerCollateral(priceWad)
	if err != nil {
		return nil, err
	}
	denom, err := MulWad(neutronSupply, pStar)
	if err != nil {
		return nil, err
	}
	if denom.Sign() == 0 {
		return big.NewInt(0), nil
	}
	rWad, err := DivWad(reserve, denom)
	if err != nil {
		return nil, err
	}
	rTilde := new(big.Int).Set(rWad)
	if rWad.Cmp(criticalWad) <= 0 {
		// rTilde = 1 + (rWad/critical) * (critical - 1)
		spread := new(big.Int).Sub(criticalWad, wad)
		scaled, err := MulDiv(rWad, spread, criticalWad)
		if err != nil {
			return nil, err
		}
		rTilde = new(big.Int).Add(wad, scaled)
	}
	q, err := MulDiv(wad, wad, rTilde)
	if err != nil {
		return nil, err
	}
	return minBig(q, wad), nil
}

// NeutronPrice values one neutron in collateral units (wad). A zero reserve
// prices at zero; a zero supply prices at par against the peg.
func NeutronPrice(reserve, neutronSupply, priceWad, criticalWad *big.Int) (*big.Int, error) {
	if neutronSupply == nil || neutronSupply.Sign() == 0 {
		return PegPerCollateral(priceWad)
	}
	if reserve == nil || reserve.Sign() == 0 {
		return big.NewInt(0), nil
	}
	q, err := BackingFraction(reserve, neutronSupply, priceWad, criticalWad)
	if err != nil {
		return nil, err
	}
	return MulDiv(q, reserve, neutronSupply)
}

// ProtonPrice values one proton in collateral units (wad). A zero supply
// prices at par with one collateral unit; a saturated q or empty reserve
// prices at zero.
func ProtonPrice(reserve, neutronSupply, protonSupply, priceWad, criticalWad *big.Int) (*big.Int, error) {
	if protonSupply == nil || protonSupply.Sign() == 0 {
		return Wad(), nil
	}
	if reserve == nil || reserve.Sign() == 0 {
		return big.NewInt(0), nil
	}
	q, err := BackingFraction(reserve, neutronSupply, priceWad, criticalWad)
	if err != nil {
		return nil, err
	}
	residual := new(big.Int).Sub(wad, q)
	if residual.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	return MulDiv(residual, reserve, protonSupply)
}
