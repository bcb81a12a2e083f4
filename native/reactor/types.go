package reactor

import (
	"math/big"

	"gluon/crypto"
)

// Operation kinds recorded by the reactor store.
const (
	OpFission     = "fission"
	OpFusion      = "fusion"
	OpDecayPlus   = "decay+"
	OpDecayMinus  = "decay-"
	OpPriceUpdate = "price-update"
	OpFeeParams   = "fee-params"
)

// State is a point-in-time snapshot of a reactor: the reserve and claim
// supplies owned by the token ledgers plus the decay ledger internals. It is
// what the store persists and what the query surface serves.
type State struct {
	Collateral        string
	Reserve           *big.Int
	NeutronSupply     *big.Int
	ProtonSupply      *big.Int
	Phi0Wad           *big.Int
	Phi1Wad           *big.Int
	DecayPerSecondWad *big.Int
	DecayedVolume     *big.Int
	LastDecayAdvance  int64
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Reserve = cloneOrZero(s.Reserve)
	clone.NeutronSupply = cloneOrZero(s.NeutronSupply)
	clone.ProtonSupply = cloneOrZero(s.ProtonSupply)
	clone.Phi0Wad = cloneOrZero(s.Phi0Wad)
	clone.Phi1Wad = cloneOrZero(s.Phi1Wad)
	clone.DecayPerSecondWad = cloneOrZero(s.DecayPerSecondWad)
	clone.DecayedVolume = cloneOrZero(s.DecayedVolume)
	return &clone
}

// OperationRecord is the persisted result record of a single reactor
// operation, carrying every quantity needed to reconstruct state history
// off-process.
type OperationRecord struct {
	ID            string
	Kind          string
	Collateral    string
	Payer         crypto.Address
	Recipient     crypto.Address
	AmountIn      *big.Int
	NeutronDelta  *big.Int
	ProtonDelta   *big.Int
	Fee           *big.Int
	FeeWad        *big.Int
	GrossValue    *big.Int
	DecayedVolume *big.Int
	Timestamp     int64
}

// Copy returns a deep copy of the record.
func (r *OperationRecord) Copy() *OperationRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.AmountIn = cloneOrZero(r.AmountIn)
	clone.NeutronDelta = cloneOrZero(r.NeutronDelta)
	clone.ProtonDelta = cloneOrZero(r.ProtonDelta)
	clone.Fee = cloneOrZero(r.Fee)
	clone.FeeWad = cloneOrZero(r.FeeWad)
	clone.GrossValue = cloneOrZero(r.GrossValue)
	clone.DecayedVolume = cloneOrZero(r.DecayedVolume)
	return &clone
}

// FissionResult reports the outputs of an issuance.
type FissionResult struct {
	AmountIn   *big.Int
	Fee        *big.Int
	NeutronOut *big.Int
	ProtonOut  *big.Int
	Refund     *big.Int
}

// FusionResult reports the outputs of a retirement.
type FusionResult struct {
	AmountOut   *big.Int
	Fee         *big.Int
	NeutronBurn *big.Int
	ProtonBurn  *big.Int
}

// DecayResult reports the outputs of a conversion in either direction.
type DecayResult struct {
	AmountIn      *big.Int
	AmountOut     *big.Int
	GrossValue    *big.Int
	FeeWad        *big.Int
	DecayedVolume *big.Int
	Refund        *big.Int
}
