package reactor

import (
	"errors"
	"testing"
	"time"

	"gluon/native/token"
)

func newTestFactory(t *testing.T, oracle *mockOracle) *Factory {
	t.Helper()
	factory, err := NewFactory(oracle)
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	factory.SetClock(func() time.Time { return time.Unix(testGenesis, 0) })
	return factory
}

func TestFactoryDeployRegistersReactor(t *testing.T) {
	oracle := &mockOracle{sample: PriceSample{Mantissa: 2, Exponent: 0, PublishTime: testGenesis}}
	factory := newTestFactory(t, oracle)
	admin := makeAddress(0x01)
	caller := makeAddress(0x02)
	params := defaultTestParams(makeAddress(0x04), makeAddress(0x05))

	collateral, err := token.New("Wrapped Collateral", "wCOL", 18, admin)
	if err != nil {
		t.Fatalf("collateral ledger: %v", err)
	}
	engine, err := factory.Deploy(params, collateral)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	// Lookup is case-insensitive on the collateral symbol.
	found, ok := factory.Reactor("wcol")
	if !ok || found != engine {
		t.Fatalf("reactor lookup failed")
	}
	if got := factory.Collaterals(); len(got) != 1 || got[0] != "WCOL" {
		t.Fatalf("unexpected collaterals: %v", got)
	}

	// The deployed instance shares the factory's clock and operates normally.
	if err := collateral.Mint(admin, caller, wadMul(1000)); err != nil {
		t.Fatalf("fund caller: %v", err)
	}
	if err := collateral.Approve(caller, engine.ModuleAccount(), wadMul(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	res, err := engine.Fission(caller, caller, wadMul(300), nil, nil)
	if err != nil {
		t.Fatalf("fission: %v", err)
	}
	if res.NeutronOut.Cmp(wadMul(200)) != 0 {
		t.Fatalf("unexpected neutron out: %s", res.NeutronOut)
	}
}

func TestFactoryRejectsDuplicateCollateral(t *testing.T) {
	oracle := &mockOracle{sample: PriceSample{Mantissa: 2, Exponent: 0, PublishTime: testGenesis}}
	factory := newTestFactory(t, oracle)
	admin := makeAddress(0x01)
	params := defaultTestParams(makeAddress(0x04), makeAddress(0x05))

	collateral, err := token.New("Wrapped Collateral", "wCOL", 18, admin)
	if err != nil {
		t.Fatalf("collateral ledger: %v", err)
	}
	if _, err := factory.Deploy(params, collateral); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	second := params
	second.CollateralSymbol = " wcol "
	if _, err := factory.Deploy(second, collateral); !errors.Is(err, ErrDuplicateReactor) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestFactoryRejectsInvalidParams(t *testing.T) {
	oracle := &mockOracle{}
	factory := newTestFactory(t, oracle)
	admin := makeAddress(0x01)
	params := defaultTestParams(makeAddress(0x04), makeAddress(0x05))
	params.CriticalRatioWad = wadMul(0)

	collateral, err := token.New("Wrapped Collateral", "wCOL", 18, admin)
	if err != nil {
		t.Fatalf("collateral ledger: %v", err)
	}
	if _, err := factory.Deploy(params, collateral); !errors.Is(err, errInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
}
