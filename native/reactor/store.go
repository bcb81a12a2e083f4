package reactor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"gluon/crypto"
	"gluon/storage"
)

var (
	statePrefix   = []byte("reactor/state/")
	recordPrefix  = []byte("reactor/rec/")
	counterPrefix = []byte("reactor/seq/")
)

// Store persists reactor state snapshots and an append-only operation record
// log in the underlying key-value store. Records are keyed by a monotonic
// sequence per collateral and carry a blake3 content identifier.
type Store struct {
	db storage.Database
}

// NewStore binds a store to the supplied database.
func NewStore(db storage.Database) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("reactor: store database required")
	}
	return &Store{db: db}, nil
}

type storedState struct {
	Collateral        string
	Reserve           string
	NeutronSupply     string
	ProtonSupply      string
	Phi0Wad           string
	Phi1Wad           string
	DecayPerSecondWad string
	DecayedVolume     string
	LastDecayAdvance  uint64
}

type storedRecord struct {
	Kind          string
	Collateral    string
	Payer         []byte
	Recipient     []byte
	AmountIn      string
	NeutronDelta  string
	ProtonDelta   string
	Fee           string
	FeeWad        string
	GrossValue    string
	DecayedVolume string
	Timestamp     uint64
}

// PutState overwrites the persisted snapshot for the state's collateral.
func (s *Store) PutState(state *State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("reactor: store not initialised")
	}
	if state == nil || strings.TrimSpace(state.Collateral) == "" {
		return fmt.Errorf("reactor: state with collateral required")
	}
	stored := storedState{
		Collateral:        strings.TrimSpace(state.Collateral),
		Reserve:           bigToString(state.Reserve),
		NeutronSupply:     bigToString(state.NeutronSupply),
		ProtonSupply:      bigToString(state.ProtonSupply),
		Phi0Wad:           bigToString(state.Phi0Wad),
		Phi1Wad:           bigToString(state.Phi1Wad),
		DecayPerSecondWad: bigToString(state.DecayPerSecondWad),
		DecayedVolume:     bigToString(state.DecayedVolume),
	}
	if state.LastDecayAdvance > 0 {
		stored.LastDecayAdvance = uint64(state.LastDecayAdvance)
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(stateKey(stored.Collateral), encoded)
}

// GetState loads the persisted snapshot for the collateral, reporting whether
// one exists.
func (s *Store) GetState(collateral string) (*State, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("reactor: store not initialised")
	}
	key := stateKey(strings.TrimSpace(collateral))
	ok, err := s.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	var stored storedState
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, err
	}
	state := &State{
		Collateral:       stored.Collateral,
		LastDecayAdvance: int64(stored.LastDecayAdvance),
	}
	fields := []struct {
		dst **big.Int
		src string
	}{
		{&state.Reserve, stored.Reserve},
		{&state.NeutronSupply, stored.NeutronSupply},
		{&state.ProtonSupply, stored.ProtonSupply},
		{&state.Phi0Wad, stored.Phi0Wad},
		{&state.Phi1Wad, stored.Phi1Wad},
		{&state.DecayPerSecondWad, stored.DecayPerSecondWad},
		{&state.DecayedVolume, stored.DecayedVolume},
	}
	for _, field := range fields {
		parsed, err := stringToBig(field.src)
		if err != nil {
			return nil, false, err
		}
		*field.dst = parsed
	}
	return state, true, nil
}

// AppendRecord assigns the next sequence number and content ID to the record
// and persists it.
func (s *Store) AppendRecord(record *OperationRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("reactor: store not initialised")
	}
	if record == nil || strings.TrimSpace(record.Collateral) == "" {
		return fmt.Errorf("reactor: record with collateral required")
	}
	stored := toStoredRecord(record)
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	sum := blake3.Sum256(encoded)
	record.ID = hex.EncodeToString(sum[:])

	seq, err := s.nextSequence(stored.Collateral)
	if err != nil {
		return err
	}
	if err := s.db.Put(recordKey(stored.Collateral, seq), encoded); err != nil {
		return err
	}
	return s.putSequence(stored.Collateral, seq+1)
}

// ListRecords returns up to limit records for the collateral within the
// inclusive timestamp bounds, starting after the supplied cursor sequence. A
// zero limit returns everything. The next cursor is zero when the listing is
// exhausted.
func (s *Store) ListRecords(collateral string, startTs, endTs int64, cursor uint64, limit int) ([]*OperationRecord, uint64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("reactor: store not initialised")
	}
	trimmed := strings.TrimSpace(collateral)
	count, err := s.nextSequence(trimmed)
	if err != nil {
		return nil, 0, err
	}
	records := make([]*OperationRecord, 0)
	var nextCursor uint64
	for seq := cursor; seq < count; seq++ {
		raw, err := s.db.Get(recordKey(trimmed, seq))
		if err != nil {
			return nil, 0, err
		}
		var stored storedRecord
		if err := rlp.DecodeBytes(raw, &stored); err != nil {
			return nil, 0, err
		}
		ts := int64(stored.Timestamp)
		if startTs != 0 && ts < startTs {
			continue
		}
		if endTs != 0 && ts > endTs {
			continue
		}
		record, err := fromStoredRecord(&stored, raw)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, record)
		if limit > 0 && len(records) == limit {
			nextCursor = seq + 1
			break
		}
	}
	if nextCursor >= count {
		nextCursor = 0
	}
	return records, nextCursor, nil
}

func (s *Store) nextSequence(collateral string) (uint64, error) {
	key := counterKey(collateral)
	ok, err := s.db.Has(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	raw, err := s.db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("reactor: corrupt sequence counter for %s", collateral)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Store) putSequence(collateral string, next uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	return s.db.Put(counterKey(collateral), buf)
}

func toStoredRecord(record *OperationRecord) storedRecord {
	stored := storedRecord{
		Kind:          strings.TrimSpace(record.Kind),
		Collateral:    strings.TrimSpace(record.Collateral),
		AmountIn:      bigToString(record.AmountIn),
		NeutronDelta:  bigToString(record.NeutronDelta),
		ProtonDelta:   bigToString(record.ProtonDelta),
		Fee:           bigToString(record.Fee),
		FeeWad:        bigToString(record.FeeWad),
		GrossValue:    bigToString(record.GrossValue),
		DecayedVolume: bigToString(record.DecayedVolume),
	}
	if !record.Payer.IsZero() {
		stored.Payer = append([]byte(nil), record.Payer.Bytes()...)
	}
	if !record.Recipient.IsZero() {
		stored.Recipient = append([]byte(nil), record.Recipient.Bytes()...)
	}
	if record.Timestamp > 0 {
		stored.Timestamp = uint64(record.Timestamp)
	}
	return stored
}

func fromStoredRecord(stored *storedRecord, encoded []byte) (*OperationRecord, error) {
	sum := blake3.Sum256(encoded)
	record := &OperationRecord{
		ID:         hex.EncodeToString(sum[:]),
		Kind:       stored.Kind,
		Collateral: stored.Collateral,
		Timestamp:  int64(stored.Timestamp),
	}
	if len(stored.Payer) == 20 {
		record.Payer = crypto.NewAddress(crypto.GluonPrefix, append([]byte(nil), stored.Payer...))
	}
	if len(stored.Recipient) == 20 {
		record.Recipient = crypto.NewAddress(crypto.GluonPrefix, append([]byte(nil), stored.Recipient...))
	}
	fields := []struct {
		dst **big.Int
		src string
	}{
		{&record.AmountIn, stored.AmountIn},
		{&record.NeutronDelta, stored.NeutronDelta},
		{&record.ProtonDelta, stored.ProtonDelta},
		{&record.Fee, stored.Fee},
		{&record.FeeWad, stored.FeeWad},
		{&record.GrossValue, stored.GrossValue},
		{&record.DecayedVolume, stored.DecayedVolume},
	}
	for _, field := range fields {
		parsed, err := stringToBig(field.src)
		if err != nil {
			return nil, err
		}
		*field.dst = parsed
	}
	return record, nil
}

func stateKey(collateral string) []byte {
	return append(append([]byte(nil), statePrefix...), collateral...)
}

func counterKey(collateral string) []byte {
	return append(append([]byte(nil), counterPrefix...), collateral...)
}

func recordKey(collateral string, seq uint64) []byte {
	key := append(append([]byte(nil), recordPrefix...), collateral...)
	key = append(key, '/')
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return append(key, buf...)
}

func bigToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func stringToBig(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("reactor: invalid amount %q", s)
	}
	return parsed, nil
}
