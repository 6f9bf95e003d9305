package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"horus/crypto"
	"horus/native/leverage"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type Config struct {
	DataDir              string          `toml:"DataDir"`
	Environment          string          `toml:"Environment"`
	OperatorKeystorePath string          `toml:"OperatorKeystorePath"`
	Gateway              Gateway         `toml:"gateway"`
	Telemetry            Telemetry       `toml:"telemetry"`
	Leverage             leverage.Config `toml:"leverage"`
}

// Gateway configures the read-only HTTP query surface served by horusctl.
type Gateway struct {
	ListenAddress     string  `toml:"ListenAddress"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
	// FallbackIndex is the collateral index used for solvency checks when a
	// request does not name one.
	FallbackIndex string `toml:"FallbackIndex"`
}

// Telemetry configures OTLP/HTTP export of gateway traces and metrics.
// Headers is a comma separated key=value list sent with every export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

type loadOptions struct {
	passphrase    string
	hasPassphrase bool
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithKeystorePassphrase supplies the passphrase used when Load has to create
// the operator keystore.
func WithKeystorePassphrase(passphrase string) LoadOption {
	return func(o *loadOptions) {
		o.passphrase = passphrase
		o.hasPassphrase = true
	}
}

const (
	defaultListenAddress     = "127.0.0.1:9464"
	defaultTelemetryEndpoint = "localhost:4318"
)

var errMissingPassphrase = errors.New("config: keystore passphrase required to create operator key")

// Load loads the configuration from the given path, writing a default file
// (and operator keystore) when none exists.
func Load(path string, opts ...LoadOption) (*Config, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, options)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./horus-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if strings.TrimSpace(cfg.Gateway.ListenAddress) == "" {
		cfg.Gateway.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(cfg.Gateway.FallbackIndex) == "" {
		cfg.Gateway.FallbackIndex = "1000000000"
	}
	if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		cfg.Telemetry.Endpoint = defaultTelemetryEndpoint
	}
	cfg.Leverage.EnsureDefaults()

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file. The generated
// operator key owns the ledger and receives the reward skim.
func createDefault(path string, options loadOptions) (*Config, error) {
	if !options.hasPassphrase {
		return nil, errMissingPassphrase
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, options.passphrase); err != nil {
		return nil, err
	}

	operator := key.PubKey().Address().String()
	cfg := &Config{
		DataDir:              "./horus-data",
		Environment:          "dev",
		OperatorKeystorePath: keystorePath,
		Gateway: Gateway{
			ListenAddress:     defaultListenAddress,
			RequestsPerMinute: 120,
			Burst:             20,
			FallbackIndex:     "1000000000",
		},
		Telemetry: Telemetry{
			Endpoint: defaultTelemetryEndpoint,
			Insecure: true,
		},
		Leverage: leverage.Config{
			Module:         derivedAddress(crypto.ModulePrefix, "module/leverage"),
			Owner:          operator,
			Operator:       operator,
			DebtAsset:      derivedAddress(crypto.AssetPrefix, "asset/debt"),
			PairedAsset:    derivedAddress(crypto.AssetPrefix, "asset/paired"),
			ReserveAsset:   derivedAddress(crypto.AssetPrefix, "asset/reserve"),
			Ceiling:        "0",
			RewardPerBlock: "0",
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// derivedAddress builds a stable placeholder address from a label.
func derivedAddress(prefix crypto.AddressPrefix, label string) string {
	return crypto.MustNewAddress(prefix, ethcrypto.Keccak256([]byte(label))[:crypto.AddressLength]).String()
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

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
