package reactor

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"
)

type mockOracle struct {
	sample    PriceSample
	sampleErr error
	updateFee *big.Int
	updates   [][]byte
	feePaid   *big.Int
}

func (m *mockOracle) GetPriceUnsafe([32]byte) (PriceSample, error) {
	if m.sampleErr != nil {
		return PriceSample{}, m.sampleErr
	}
	return m.sample, nil
}

func (m *mockOracle) GetPriceNoOlderThan(_ [32]byte, maxAge uint64) (PriceSample, error) {
	if m.sampleErr != nil {
		return PriceSample{}, m.sampleErr
	}
	return m.sample, nil
}

func (m *mockOracle) GetUpdateFee([][]byte) (*big.Int, error) {
	if m.updateFee == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(m.updateFee), nil
}

func (m *mockOracle) UpdatePriceFeeds(update [][]byte, fee *big.Int) error {
	m.updates = update
	m.feePaid = new(big.Int).Set(fee)
	return nil
}

func newTestAdapter(t *testing.T, oracle *mockOracle, maxAge uint64, now int64) *PriceAdapter {
	t.Helper()
	adapter, err := NewPriceAdapter(oracle, [32]byte{0x01}, maxAge)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	adapter.SetClock(func() time.Time { return time.Unix(now, 0) })
	return adapter
}

func TestNormalizePrice(t *testing.T) {
	// 2.0 peg per collateral published as mantissa 2e8, exponent -8.
	price, err := NormalizePrice(PriceSample{Mantissa: 200_000_000, Exponent: -8})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if price.Cmp(wadMul(2)) != 0 {
		t.Fatalf("unexpected normalized price: got %s want %s", price, wadMul(2))
	}

	price, err = NormalizePrice(PriceSample{Mantissa: 3, Exponent: 0})
	if err != nil {
		t.Fatalf("normalize whole exponent: %v", err)
	}
	if price.Cmp(wadMul(3)) != 0 {
		t.Fatalf("unexpected normalized price: got %s want %s", price, wadMul(3))
	}
}

func TestNormalizePriceRejectsBadSamples(t *testing.T) {
	if _, err := NormalizePrice(PriceSample{Mantissa: 0, Exponent: -8}); !errors.Is(err, ErrBadPrice) {
		t.Fatalf("expected bad price for zero mantissa, got %v", err)
	}
	if _, err := NormalizePrice(PriceSample{Mantissa: -5, Exponent: -8}); !errors.Is(err, ErrBadPrice) {
		t.Fatalf("expected bad price for negative mantissa, got %v", err)
	}
	if _, err := NormalizePrice(PriceSample{Mantissa: 1, Exponent: 38}); !errors.Is(err, ErrBadPrice) {
		t.Fatalf("expected bad price for oversized exponent, got %v", err)
	}
}

func TestAdapterStalenessWindow(t *testing.T) {
	oracle := &mockOracle{sample: PriceSample{Mantissa: 2, Exponent: 0, PublishTime: 100}}

	adapter := newTestAdapter(t, oracle, 60, 150)
	if _, err := adapter.NoOlderThan(); err != nil {
		t.Fatalf("fresh sample rejected: %v", err)
	}

	adapter = newTestAdapter(t, oracle, 60, 200)
	if _, err := adapter.NoOlderThan(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}

	// The unsafe read never applies the window.
	if _, err := adapter.Current(); err != nil {
		t.Fatalf("unsafe read: %v", err)
	}
}

func TestAdapterMapsOracleStalenessFailure(t *testing.T) {
	oracle := &mockOracle{sampleErr: fmt.Errorf("no fresh sample")}
	adapter := newTestAdapter(t, oracle, 60, 100)
	if _, err := adapter.NoOlderThan(); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
}

func TestPushUpdateForwardsFeeAndRefundsExcess(t *testing.T) {
	oracle := &mockOracle{
		sample:    PriceSample{Mantissa: 2, Exponent: 0, PublishTime: 100},
		updateFee: big.NewInt(7),
	}
	adapter := newTestAdapter(t, oracle, 60, 100)

	feePaid, refund, err := adapter.PushUpdate([][]byte{{0xAA}}, big.NewInt(10))
	if err != nil {
		t.Fatalf("push update: %v", err)
	}
	if feePaid.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected fee paid: %s", feePaid)
	}
	if refund.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("unexpected refund: %s", refund)
	}
	if oracle.feePaid == nil || oracle.feePaid.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("oracle did not receive exact fee: %v", oracle.feePaid)
	}
}

func TestPushUpdateRejectsUnderpayment(t *testing.T) {
	oracle := &mockOracle{updateFee: big.NewInt(7)}
	adapter := newTestAdapter(t, oracle, 60, 100)

	if _, _, err := adapter.PushUpdate([][]byte{{0xAA}}, big.NewInt(3)); !errors.Is(err, ErrInsufficientFee) {
		t.Fatalf("expected insufficient fee, got %v", err)
	}
	if oracle.updates != nil {
		t.Fatalf("update must not be forwarded on underpayment")
	}
}

func TestPushUpdateNoPayloadIsNoop(t *testing.T) {
	oracle := &mockOracle{updateFee: big.NewInt(7)}
	adapter := newTestAdapter(t, oracle, 60, 100)

	feePaid, refund, err := adapter.PushUpdate(nil, big.NewInt(5))
	if err != nil {
		t.Fatalf("push update: %v", err)
	}
	if feePaid.Sign() != 0 {
		t.Fatalf("no payload must cost nothing, paid %s", feePaid)
	}
	if refund.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("attached value must be returned in full, got %s", refund)
	}
}
