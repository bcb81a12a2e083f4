package reactor

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	// ErrStalePrice indicates the freshest oracle sample exceeded the maximum
	// age allowed on a state-changing path.
	ErrStalePrice = errors.New("reactor: stale price")
	// ErrBadPrice indicates a non-positive mantissa, an unsupported exponent,
	// or a derived price of zero.
	ErrBadPrice = errors.New("reactor: bad price")
	// ErrInsufficientFee indicates the attached value did not cover the
	// oracle's quoted update fee.
	ErrInsufficientFee = errors.New("reactor: insufficient oracle fee")
)

// PriceSample is a point-in-time oracle observation. The price it encodes is
// Mantissa * 10^Exponent in peg units per collateral unit.
type PriceSample struct {
	Mantissa    int64
	Exponent    int32
	PublishTime int64
}

// Oracle is the pull-oracle surface the adapter consumes.
type Oracle interface {
	GetPriceUnsafe(feedID [32]byte) (PriceSample, error)
	GetPriceNoOlderThan(feedID [32]byte, maxAge uint64) (PriceSample, error)
	GetUpdateFee(update [][]byte) (*big.Int, error)
	UpdatePriceFeeds(update [][]byte, fee *big.Int) error
}

// PriceAdapter wraps the oracle for a single feed, normalising samples to the
// wad scale and enforcing the staleness window on state-changing reads.
type PriceAdapter struct {
	oracle Oracle
	feedID [32]byte
	maxAge uint64
	now    func() time.Time
}

// NewPriceAdapter binds the adapter to a feed. maxAge is the staleness window
// in seconds applied by NoOlderThan.
func NewPriceAdapter(oracle Oracle, feedID [32]byte, maxAge uint64) (*PriceAdapter, error) {
	if oracle == nil {
		return nil, fmt.Errorf("reactor: oracle required")
	}
	if maxAge == 0 {
		return nil, fmt.Errorf("reactor: price max age required")
	}
	return &PriceAdapter{oracle: oracle, feedID: feedID, maxAge: maxAge, now: time.Now}, nil
}

// SetClock overrides the time source (primarily for deterministic testing).
func (p *PriceAdapter) SetClock(now func() time.Time) {
	if p == nil || now == nil {
		return
	}
	p.now = now
}

// MaxAge returns the configured staleness window in seconds.
func (p *PriceAdapter) MaxAge() uint64 {
	if p == nil {
		return 0
	}
	return p.maxAge
}

// Current returns the latest sample without a staleness check. It exists for
// informational views only; state-changing math must use NoOlderThan.
func (p *PriceAdapter) Current() (*big.Int, error) {
	sample, err := p.oracle.GetPriceUnsafe(p.feedID)
	if err != nil {
		return nil, err
	}
	return NormalizePrice(sample)
}

// NoOlderThan returns the latest sample normalised to wad, failing with
// ErrStalePrice when it is older than the configured window.
func (p *PriceAdapter) NoOlderThan() (*big.Int, error) {
	sample, err := p.oracle.GetPriceNoOlderThan(p.feedID, p.maxAge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStalePrice, err)
	}
	now := p.now().Unix()
	if sample.PublishTime < now && uint64(now-sample.PublishTime) > p.maxAge {
		return nil, ErrStalePrice
	}
	return NormalizePrice(sample)
}

// PushUpdate submits raw update data, forwarding exactly the quoted fee and
// returning the excess so the caller can be refunded in the same operation.
func (p *PriceAdapter) PushUpdate(update [][]byte, attached *big.Int) (feePaid, refund *big.Int, err error) {
	if len(update) == 0 {
		return big.NewInt(0), cloneOrZero(attached), nil
	}
	fee, err := p.oracle.GetUpdateFee(update)
	if err != nil {
		return nil, nil, err
	}
	if fee == nil || fee.Sign() < 0 {
		fee = big.NewInt(0)
	}
	value := cloneOrZero(attached)
	if value.Cmp(fee) < 0 {
		return nil, nil, ErrInsufficientFee
	}
	if err := p.oracle.UpdatePriceFeeds(update, fee); err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(fee), value.Sub(value, fee), nil
}

// NormalizePrice converts a (mantissa, exponent) sample into the wad scale.
func NormalizePrice(sample PriceSample) (*big.Int, error) {
	if sample.Mantissa <= 0 {
		return nil, ErrBadPrice
	}
	scaled, err := ScaleByDecimalExponent(big.NewInt(sample.Mantissa), 18+sample.Exponent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPrice, err)
	}
	if scaled.Sign() <= 0 {
		return nil, ErrBadPrice
	}
	return scaled, nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
