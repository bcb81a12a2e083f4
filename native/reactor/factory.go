package reactor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gluon/core/events"
	"gluon/crypto"
	nativecommon "gluon/native/common"
	"gluon/native/token"
)

// ErrDuplicateReactor indicates a deployment against a collateral that
// already has a registered reactor.
var ErrDuplicateReactor = errors.New("reactor: collateral already registered")

// Factory validates deployment parameter bundles, constructs reactors, and
// records the resulting instances keyed by collateral symbol. It holds the
// shared collaborators every deployed reactor is wired with.
type Factory struct {
	oracle        Oracle
	accounts      AccountState
	oracleFeeAddr crypto.Address
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	store         *Store
	now           func() time.Time

	mu       sync.RWMutex
	reactors map[string]*Engine
}

// NewFactory constructs a factory over the shared oracle service.
func NewFactory(oracle Oracle) (*Factory, error) {
	if oracle == nil {
		return nil, fmt.Errorf("reactor: oracle required")
	}
	return &Factory{
		oracle:   oracle,
		emitter:  events.NoopEmitter{},
		now:      time.Now,
		reactors: make(map[string]*Engine),
	}, nil
}

// SetAccounts wires the native account state shared by deployed reactors.
func (f *Factory) SetAccounts(accounts AccountState, oracleFeeAddr crypto.Address) {
	if f == nil {
		return
	}
	f.accounts = accounts
	f.oracleFeeAddr = oracleFeeAddr
}

// SetPauses wires the module pause view shared by deployed reactors.
func (f *Factory) SetPauses(p nativecommon.PauseView) {
	if f == nil {
		return
	}
	f.pauses = p
}

// SetEmitter wires the event sink shared by deployed reactors.
func (f *Factory) SetEmitter(emitter events.Emitter) {
	if f == nil || emitter == nil {
		return
	}
	f.emitter = emitter
}

// SetStore wires the persistence layer shared by deployed reactors.
func (f *Factory) SetStore(store *Store) {
	if f == nil {
		return
	}
	f.store = store
}

// SetClock overrides the time source (primarily for deterministic testing).
func (f *Factory) SetClock(now func() time.Time) {
	if f == nil || now == nil {
		return
	}
	f.now = now
}

// Deploy validates the bundle, constructs a reactor over the collateral
// ledger, wires the shared collaborators, and registers it. The collateral
// symbol is the registry key; duplicates are rejected.
func (f *Factory) Deploy(params Params, collateral *token.Token) (*Engine, error) {
	if f == nil {
		return nil, fmt.Errorf("reactor: factory not initialised")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key := registryKey(params.CollateralSymbol)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.reactors[key]; exists {
		return nil, ErrDuplicateReactor
	}
	engine, err := NewEngine(params, collateral, f.oracle, f.now().Unix())
	if err != nil {
		return nil, err
	}
	engine.SetAccounts(f.accounts, f.oracleFeeAddr)
	engine.SetPauses(f.pauses)
	engine.SetEmitter(f.emitter)
	engine.SetStore(f.store)
	engine.SetClock(f.now)
	f.reactors[key] = engine
	return engine, nil
}

// Reactor returns the registered instance for the collateral symbol.
func (f *Factory) Reactor(collateralSymbol string) (*Engine, bool) {
	if f == nil {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	engine, ok := f.reactors[registryKey(collateralSymbol)]
	return engine, ok
}

// Collaterals returns the registered collateral symbols in sorted order.
func (f *Factory) Collaterals() []string {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	symbols := make([]string, 0, len(f.reactors))
	for key := range f.reactors {
		symbols = append(symbols, key)
	}
	sort.Strings(symbols)
	return symbols
}

func registryKey(collateralSymbol string) string {
	return strings.ToUpper(strings.TrimSpace(collateralSymbol))
}
