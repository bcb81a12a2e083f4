package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gluon/config"
	"gluon/core/events"
	coretypes "gluon/core/types"
	"gluon/crypto"
	"gluon/native/reactor"
	"gluon/native/token"
	"gluon/observability/logging"
	"gluon/observability/metrics"
	"gluon/rpc"
	"gluon/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var logger *slog.Logger
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.SetupRotating(cfg.ServiceName, cfg.Environment, cfg.LogFile)
	} else {
		logger = logging.Setup(cfg.ServiceName, cfg.Environment)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "reactor"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := reactor.NewStore(db)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}

	factory, err := reactor.NewFactory(newDevOracle(cfg.Oracle))
	if err != nil {
		logger.Error("build factory", "error", err)
		os.Exit(1)
	}
	factory.SetStore(store)
	factory.SetEmitter(&eventSink{
		logger:  logger,
		metrics: metrics.Reactor(),
		factory: factory,
	})

	for _, rc := range cfg.Reactors {
		params, ledger, err := buildReactor(rc)
		if err != nil {
			logger.Error("configure reactor", "collateral", rc.CollateralSymbol, "error", err)
			os.Exit(1)
		}
		if _, err := factory.Deploy(params, ledger); err != nil {
			logger.Error("deploy reactor", "collateral", rc.CollateralSymbol, "error", err)
			os.Exit(1)
		}
		if state, ok, err := store.GetState(params.CollateralSymbol); err == nil && ok {
			logger.Info("persisted reactor state found",
				"collateral", state.Collateral,
				"reserve", state.Reserve.String(),
				"neutronSupply", state.NeutronSupply.String(),
				"protonSupply", state.ProtonSupply.String())
		}
		logger.Info("reactor deployed", "collateral", params.CollateralSymbol)
	}

	api, err := rpc.NewServer(factory, store, logger, rpc.RateLimit{
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.RequestBurst,
	})
	if err != nil {
		logger.Error("build rpc server", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Handler())
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("reactord listening", "address", cfg.ListenAddress, "reactors", len(cfg.Reactors))

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("reactord stopped")
}

// buildReactor converts a config block into deployment parameters plus the
// collateral ledger. The configured authority mints the collateral on dev
// networks; on a live network the ledger would mirror an existing asset.
func buildReactor(rc config.ReactorConfig) (reactor.Params, *token.Token, error) {
	treasury, err := crypto.DecodeAddress(strings.TrimSpace(rc.Treasury))
	if err != nil {
		return reactor.Params{}, nil, fmt.Errorf("treasury address: %w", err)
	}
	authority, err := crypto.DecodeAddress(strings.TrimSpace(rc.Authority))
	if err != nil {
		return reactor.Params{}, nil, fmt.Errorf("authority address: %w", err)
	}
	feed, err := parseFeedID(rc.FeedID)
	if err != nil {
		return reactor.Params{}, nil, err
	}

	params := reactor.Params{
		CollateralSymbol: strings.TrimSpace(rc.CollateralSymbol),
		NeutronName:      rc.NeutronName,
		NeutronSymbol:    rc.NeutronSymbol,
		ProtonName:       rc.ProtonName,
		ProtonSymbol:     rc.ProtonSymbol,
		FeedID:           feed,
		MaxPriceAge:      rc.MaxPriceAgeSeconds,
		Treasury:         treasury,
		Authority:        authority,
	}
	wadFields := []struct {
		dst  **big.Int
		name string
		raw  string
	}{
		{&params.FissionFeeWad, "FissionFeeWad", rc.FissionFeeWad},
		{&params.FusionFeeWad, "FusionFeeWad", rc.FusionFeeWad},
		{&params.CriticalRatioWad, "CriticalRatioWad", rc.CriticalRatioWad},
		{&params.Phi0Wad, "Phi0Wad", rc.Phi0Wad},
		{&params.Phi1Wad, "Phi1Wad", rc.Phi1Wad},
		{&params.DecayPerSecondWad, "DecayPerSecondWad", rc.DecayPerSecondWad},
	}
	for _, field := range wadFields {
		parsed, err := parseWad(field.raw)
		if err != nil {
			return reactor.Params{}, nil, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = parsed
	}

	name := strings.TrimSpace(rc.CollateralName)
	if name == "" {
		name = params.CollateralSymbol
	}
	ledger, err := token.New(name, params.CollateralSymbol, 18, authority)
	if err != nil {
		return reactor.Params{}, nil, err
	}
	return params, ledger, nil
}

func parseFeedID(raw string) ([32]byte, error) {
	var feed [32]byte
	decoded, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return feed, fmt.Errorf("feed ID: %w", err)
	}
	if len(decoded) != 32 {
		return feed, fmt.Errorf("feed ID must be 32 bytes, got %d", len(decoded))
	}
	copy(feed[:], decoded)
	return feed, nil
}

func parseWad(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wad amount %q", raw)
	}
	return parsed, nil
}

// eventSink logs completed operations and keeps the prometheus pool gauges in
// step with the emitting reactor.
type eventSink struct {
	logger  *slog.Logger
	metrics *metrics.ReactorMetrics
	factory *reactor.Factory
}

func (s *eventSink) Emit(evt events.Event) {
	attrs := map[string]string{}
	if carrier, ok := evt.(interface{ Event() *coretypes.Event }); ok {
		if flattened := carrier.Event(); flattened != nil {
			attrs = flattened.Attributes
		}
	}
	collateral := attrs["collateral"]
	s.logger.Info("reactor operation", "type", evt.EventType(), "collateral", collateral)
	s.metrics.ObserveOperation(collateral, evt.EventType())
	if feeWad, ok := attrs["feeWad"]; ok {
		s.metrics.SetConversionFee(collateral, evt.EventType(), wadFloat(feeWad))
	}
	engine, ok := s.factory.Reactor(collateral)
	if !ok {
		return
	}
	state := engine.Snapshot()
	s.metrics.SetPool(collateral,
		wadFloat(state.Reserve.String()),
		wadFloat(state.NeutronSupply.String()),
		wadFloat(state.ProtonSupply.String()))
}

var wadFloatScale = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

func wadFloat(raw string) float64 {
	parsed, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0
	}
	out, _ := new(big.Float).Quo(parsed, wadFloatScale).Float64()
	return out
}
