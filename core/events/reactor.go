package events

import (
	"math/big"
	"strconv"
	"strings"

	"gluon/core/types"
	"gluon/crypto"
)

const (
	// TypeReactorFission is emitted when collateral is split into both claims.
	TypeReactorFission = "reactor.fission"
	// TypeReactorFusion is emitted when both claims are retired for collateral.
	TypeReactorFusion = "reactor.fusion"
	// TypeReactorDecayPlus is emitted for proton to neutron conversions.
	TypeReactorDecayPlus = "reactor.decay.plus"
	// TypeReactorDecayMinus is emitted for neutron to proton conversions.
	TypeReactorDecayMinus = "reactor.decay.minus"
	// TypeReactorPriceUpdate is emitted when an oracle update is pushed through
	// the reactor.
	TypeReactorPriceUpdate = "reactor.price.update"
	// TypeReactorFeeParams is emitted when the decay fee parameters change.
	TypeReactorFeeParams = "reactor.fee.params"
)

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressAttr(addr crypto.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}

// Fission captures a completed issuance.
type Fission struct {
	Collateral string
	Payer      crypto.Address
	Recipient  crypto.Address
	AmountIn   *big.Int
	NeutronOut *big.Int
	ProtonOut  *big.Int
	Fee        *big.Int
}

func (Fission) EventType() string { return TypeReactorFission }

func (e Fission) Event() *types.Event {
	return &types.Event{
		Type: TypeReactorFission,
		Attributes: map[string]string{
			"collateral": strings.TrimSpace(e.Collateral),
			"payer":      addressAttr(e.Payer),
			"recipient":  addressAttr(e.Recipient),
			"amountIn":   amountAttr(e.AmountIn),
			"neutronOut": amountAttr(e.NeutronOut),
			"protonOut":  amountAttr(e.ProtonOut),
			"fee":        amountAttr(e.Fee),
		},
	}
}

// Fusion captures a completed retirement.
type Fusion struct {
	Collateral  string
	Caller      crypto.Address
	Recipient   crypto.Address
	AmountOut   *big.Int
	NeutronBurn *big.Int
	ProtonBurn  *big.Int
	Fee         *big.Int
}

func (Fusion) EventType() string { return TypeReactorFusion }

func (e Fusion) Event() *types.Event {
	return &types.Event{
		Type: TypeReactorFusion,
		Attributes: map[string]string{
			"collateral":  strings.TrimSpace(e.Collateral),
			"caller":      addressAttr(e.Caller),
			"recipient":   addressAttr(e.Recipient),
			"amountOut":   amountAttr(e.AmountOut),
			"neutronBurn": amountAttr(e.NeutronBurn),
			"protonBurn":  amountAttr(e.ProtonBurn),
			"fee":         amountAttr(e.Fee),
		},
	}
}

// BetaDecay captures a conversion between the two claims in either direction.
// Plus reports the proton to neutron direction.
type BetaDecay struct {
	Collateral    string
	Plus          bool
	Caller        crypto.Address
	Recipient     crypto.Address
	AmountIn      *big.Int
	AmountOut     *big.Int
	GrossValue    *big.Int
	FeeWad        *big.Int
	DecayedVolume *big.Int
}

func (e BetaDecay) EventType() string {
	if e.Plus {
		return TypeReactorDecayPlus
	}
	return TypeReactorDecayMinus
}

func (e BetaDecay) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"collateral":    strings.TrimSpace(e.Collateral),
			"caller":        addressAttr(e.Caller),
			"recipient":     addressAttr(e.Recipient),
			"amountIn":      amountAttr(e.AmountIn),
			"amountOut":     amountAttr(e.AmountOut),
			"grossValue":    amountAttr(e.GrossValue),
			"feeWad":        amountAttr(e.FeeWad),
			"decayedVolume": amountAttr(e.DecayedVolume),
		},
	}
}

// PriceUpdate captures an oracle update pushed through a reactor operation.
type PriceUpdate struct {
	Collateral string
	Payer      crypto.Address
	FeePaid    *big.Int
	Refunded   *big.Int
}

func (PriceUpdate) EventType() string { return TypeReactorPriceUpdate }

func (e PriceUpdate) Event() *types.Event {
	return &types.Event{
		Type: TypeReactorPriceUpdate,
		Attributes: map[string]string{
			"collateral": strings.TrimSpace(e.Collateral),
			"payer":      addressAttr(e.Payer),
			"feePaid":    amountAttr(e.FeePaid),
			"refunded":   amountAttr(e.Refunded),
		},
	}
}

// FeeParamsChange captures an authorised decay fee parameter update.
type FeeParamsChange struct {
	Collateral     string
	Authority      crypto.Address
	Phi0Wad        *big.Int
	Phi1Wad        *big.Int
	DecayPerSecond *big.Int
	UpdatedAt      int64
}

func (FeeParamsChange) EventType() string { return TypeReactorFeeParams }

func (e FeeParamsChange) Event() *types.Event {
	return &types.Event{
		Type: TypeReactorFeeParams,
		Attributes: map[string]string{
			"collateral":     strings.TrimSpace(e.Collateral),
			"authority":      addressAttr(e.Authority),
			"phi0Wad":        amountAttr(e.Phi0Wad),
			"phi1Wad":        amountAttr(e.Phi1Wad),
			"decayPerSecond": amountAttr(e.DecayPerSecond),
			"updatedAt":      strconv.FormatInt(e.UpdatedAt, 10),
		},
	}
}
