package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "reactord", cfg.ServiceName)
	require.Empty(t, cfg.Reactors)

	_, err = os.Stat(path)
	require.NoError(t, err, "default file should be written")

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ListenAddress, reloaded.ListenAddress)
}

func TestLoadParsesReactorBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
ListenAddress = ":9090"
DataDir = "/tmp/reactor"

[Oracle]
PriceMantissa = 2
PriceExponent = 0

[[Reactor]]
CollateralSymbol = "wCOL"
CollateralName = "Wrapped Collateral"
NeutronName = "Neutron Claim"
NeutronSymbol = "nCOL"
ProtonName = "Proton Claim"
ProtonSymbol = "pCOL"
FeedID = "c000000000000000000000000000000000000000000000000000000000000000"
MaxPriceAgeSeconds = 60
Treasury = "glu1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqpqyf8a3w"
Authority = "glu1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqq9qacjv2u"
FissionFeeWad = "0"
FusionFeeWad = "0"
CriticalRatioWad = "1200000000000000000"
Phi0Wad = "0"
Phi1Wad = "0"
DecayPerSecondWad = "1000000000000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, int64(2), cfg.Oracle.PriceMantissa)
	require.Len(t, cfg.Reactors, 1)
	require.Equal(t, "wCOL", cfg.Reactors[0].CollateralSymbol)
	require.Equal(t, uint64(60), cfg.Reactors[0].MaxPriceAgeSeconds)
	// Unset throttle settings fall back to defaults.
	require.Equal(t, float64(600), cfg.RequestsPerMinute)
}

func TestLoadRejectsDuplicateReactors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	raw := `
ListenAddress = ":9090"
DataDir = "/tmp/reactor"

[[Reactor]]
CollateralSymbol = "wCOL"
Treasury = "glu1x"
Authority = "glu1y"

[[Reactor]]
CollateralSymbol = " wcol "
Treasury = "glu1x"
Authority = "glu1y"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate reactor")
}
