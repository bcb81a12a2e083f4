package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// OracleConfig describes the price feed the daemon serves quotes from. The
// development oracle publishes Mantissa * 10^Exponent at the current time.
type OracleConfig struct {
	PriceMantissa int64 `toml:"PriceMantissa"`
	PriceExponent int32 `toml:"PriceExponent"`
}

// ReactorConfig is one deployed reactor. Wad-scaled rates are decimal strings
// so the file survives round-tripping without float loss.
type ReactorConfig struct {
	CollateralSymbol string `toml:"CollateralSymbol"`
	CollateralName   string `toml:"CollateralName"`
	NeutronName      string `toml:"NeutronName"`
	NeutronSymbol    string `toml:"NeutronSymbol"`
	ProtonName       string `toml:"ProtonName"`
	ProtonSymbol     string `toml:"ProtonSymbol"`

	FeedID             string `toml:"FeedID"`
	MaxPriceAgeSeconds uint64 `toml:"MaxPriceAgeSeconds"`

	Treasury  string `toml:"Treasury"`
	Authority string `toml:"Authority"`

	FissionFeeWad     string `toml:"FissionFeeWad"`
	FusionFeeWad      string `toml:"FusionFeeWad"`
	CriticalRatioWad  string `toml:"CriticalRatioWad"`
	Phi0Wad           string `toml:"Phi0Wad"`
	Phi1Wad           string `toml:"Phi1Wad"`
	DecayPerSecondWad string `toml:"DecayPerSecondWad"`
}

type Config struct {
	ListenAddress     string          `toml:"ListenAddress"`
	DataDir           string          `toml:"DataDir"`
	ServiceName       string          `toml:"ServiceName"`
	Environment       string          `toml:"Environment"`
	LogFile           string          `toml:"LogFile"`
	RequestsPerMinute float64         `toml:"RequestsPerMinute"`
	RequestBurst      int             `toml:"RequestBurst"`
	Oracle            OracleConfig    `toml:"Oracle"`
	Reactors          []ReactorConfig `toml:"Reactor"`
}

// Load loads the configuration from the given path, creating a default file
// on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start from.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	seen := make(map[string]struct{})
	for i := range c.Reactors {
		rc := &c.Reactors[i]
		symbol := strings.ToUpper(strings.TrimSpace(rc.CollateralSymbol))
		if symbol == "" {
			return fmt.Errorf("config: reactor %d missing CollateralSymbol", i)
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("config: duplicate reactor for %s", symbol)
		}
		seen[symbol] = struct{}{}
		if strings.TrimSpace(rc.Treasury) == "" || strings.TrimSpace(rc.Authority) == "" {
			return fmt.Errorf("config: reactor %s missing Treasury or Authority", symbol)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "reactord"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 600
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 20
	}
	if cfg.Oracle.PriceMantissa == 0 {
		cfg.Oracle.PriceMantissa = 1
		cfg.Oracle.PriceExponent = 0
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:     ":8080",
		DataDir:           "./reactor-data",
		ServiceName:       "reactord",
		Environment:       "local",
		RequestsPerMinute: 600,
		RequestBurst:      20,
		Oracle: OracleConfig{
			PriceMantissa: 1,
			PriceExponent: 0,
		},
		Reactors: []ReactorConfig{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
