package reactor

import (
	"errors"
	"math/big"
	"testing"

	"gluon/storage"
)

// brokenDB rejects writes while serving reads, standing in for a database
// that has lost its disk.
type brokenDB struct {
	storage.Database
	writeErr error
}

func (db *brokenDB) Put([]byte, []byte) error { return db.writeErr }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func testRecord(ts int64) *OperationRecord {
	return &OperationRecord{
		Kind:         OpFission,
		Collateral:   "wCOL",
		Payer:        makeAddress(0x02),
		Recipient:    makeAddress(0x03),
		AmountIn:     wadMul(300),
		NeutronDelta: wadMul(200),
		ProtonDelta:  wadMul(200),
		Fee:          big.NewInt(0),
		Timestamp:    ts,
	}
}

func TestStoreStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	state := &State{
		Collateral:        "wCOL",
		Reserve:           wadMul(300),
		NeutronSupply:     wadMul(200),
		ProtonSupply:      wadMul(200),
		Phi0Wad:           big.NewInt(0),
		Phi1Wad:           big.NewInt(0),
		DecayPerSecondWad: new(big.Int).Set(wad),
		DecayedVolume:     new(big.Int).Neg(wadMul(20)),
		LastDecayAdvance:  testGenesis,
	}
	if err := store.PutState(state); err != nil {
		t.Fatalf("put state: %v", err)
	}

	loaded, ok, err := store.GetState("wCOL")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !ok {
		t.Fatalf("state not found")
	}
	if loaded.Reserve.Cmp(state.Reserve) != 0 {
		t.Fatalf("reserve mismatch: %s", loaded.Reserve)
	}
	if loaded.DecayedVolume.Cmp(state.DecayedVolume) != 0 {
		t.Fatalf("signed volume mismatch: %s", loaded.DecayedVolume)
	}
	if loaded.LastDecayAdvance != testGenesis {
		t.Fatalf("advance timestamp mismatch: %d", loaded.LastDecayAdvance)
	}

	if _, ok, err := store.GetState("missing"); err != nil || ok {
		t.Fatalf("missing collateral: ok=%v err=%v", ok, err)
	}
}

func TestStoreAppendAssignsSequenceAndID(t *testing.T) {
	store := newTestStore(t)

	first := testRecord(testGenesis)
	if err := store.AppendRecord(first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("record ID not assigned")
	}
	second := testRecord(testGenesis + 1)
	second.Kind = OpFusion
	if err := store.AppendRecord(second); err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("distinct records share an ID")
	}

	records, cursor, err := store.ListRecords("wCOL", 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("unexpected record count: %d", len(records))
	}
	if cursor != 0 {
		t.Fatalf("exhausted listing must return zero cursor, got %d", cursor)
	}
	if records[0].ID != first.ID || records[1].ID != second.ID {
		t.Fatalf("listing order or IDs wrong: %s %s", records[0].ID, records[1].ID)
	}
	if records[0].Kind != OpFission || records[1].Kind != OpFusion {
		t.Fatalf("kinds wrong: %s %s", records[0].Kind, records[1].Kind)
	}
	if records[0].Payer.IsZero() {
		t.Fatalf("payer not decoded")
	}
	if records[0].AmountIn.Cmp(wadMul(300)) != 0 {
		t.Fatalf("amount mismatch: %s", records[0].AmountIn)
	}
}

func TestStoreListFiltersAndPaginates(t *testing.T) {
	store := newTestStore(t)
	for i := int64(0); i < 5; i++ {
		if err := store.AppendRecord(testRecord(testGenesis + i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// Window keeps only the middle three.
	records, _, err := store.ListRecords("wCOL", testGenesis+1, testGenesis+3, 0, 0)
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("unexpected windowed count: %d", len(records))
	}

	// Page through everything two at a time.
	var total int
	var cursor uint64
	for {
		page, next, err := store.ListRecords("wCOL", 0, 0, cursor, 2)
		if err != nil {
			t.Fatalf("list page: %v", err)
		}
		total += len(page)
		if next == 0 {
			break
		}
		cursor = next
	}
	if total != 5 {
		t.Fatalf("pagination lost records: %d", total)
	}

	// Separate collaterals keep separate logs.
	records, _, err = store.ListRecords("other", 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("unexpected records for other collateral: %d", len(records))
	}
}

func TestEnginePersistsThroughStore(t *testing.T) {
	h := newEngineHarness(t, nil)
	store := newTestStore(t)
	h.engine.SetStore(store)

	h.mustFission(t, wadMul(300))
	if _, err := h.engine.Fusion(h.caller, h.caller, wadMul(30)); err != nil {
		t.Fatalf("fusion: %v", err)
	}

	state, ok, err := store.GetState("wCOL")
	if err != nil || !ok {
		t.Fatalf("persisted state missing: ok=%v err=%v", ok, err)
	}
	if state.Reserve.Cmp(wadMul(270)) != 0 {
		t.Fatalf("persisted reserve mismatch: %s", state.Reserve)
	}
	records, _, err := store.ListRecords("wCOL", 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("unexpected record count: %d", len(records))
	}
	if records[0].Kind != OpFission || records[1].Kind != OpFusion {
		t.Fatalf("kinds wrong: %s %s", records[0].Kind, records[1].Kind)
	}
	if records[1].NeutronDelta.Sign() >= 0 {
		t.Fatalf("fusion must record a negative neutron delta: %s", records[1].NeutronDelta)
	}
}

func TestEngineStoreFailureLeavesLedgersUntouched(t *testing.T) {
	h := newEngineHarness(t, nil)
	writeErr := errors.New("disk gone")
	store, err := NewStore(&brokenDB{Database: storage.NewMemDB(), writeErr: writeErr})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	h.engine.SetStore(store)

	if _, err := h.engine.Fission(h.caller, h.caller, wadMul(300), nil, nil); !errors.Is(err, writeErr) {
		t.Fatalf("expected store write error, got %v", err)
	}
	if h.engine.Reserve().Sign() != 0 {
		t.Fatalf("failed persist left reserve funded: %s", h.engine.Reserve())
	}
	if h.engine.Neutron().TotalSupply().Sign() != 0 || h.engine.Proton().TotalSupply().Sign() != 0 {
		t.Fatalf("failed persist left minted claims")
	}
	if got := h.collateral.BalanceOf(h.caller); got.Cmp(wadMul(1_000_000)) != 0 {
		t.Fatalf("failed persist moved collateral: %s", got)
	}
}
