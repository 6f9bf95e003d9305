package leverage

import (
	"fmt"
	"math/big"
	"strings"

	"horus/crypto"
)

// Config captures the runtime configuration for the leverage module as it
// appears in the node's TOML file. Addresses are bech32 strings and amounts
// decimal strings so they survive TOML's integer limits.
type Config struct {
	Module                  string `toml:"Module"`
	Owner                   string `toml:"Owner"`
	Operator                string `toml:"Operator"`
	DebtAsset               string `toml:"DebtAsset"`
	PairedAsset             string `toml:"PairedAsset"`
	ReserveAsset            string `toml:"ReserveAsset"`
	Ceiling                 string `toml:"Ceiling"`
	RewardPerBlock          string `toml:"RewardPerBlock"`
	StartBlock              uint64 `toml:"StartBlock"`
	SettleRewardsBeforeOpen bool   `toml:"SettleRewardsBeforeOpen"`
	Paused                  bool   `toml:"Paused"`
}

// Settings is the typed form of Config.
type Settings struct {
	Module         crypto.Address
	Params         Parameters
	Ceiling        *big.Int
	RewardPerBlock *big.Int
	StartBlock     uint64
	Paused         bool
}

// EnsureDefaults fills blank amounts with zero.
func (c *Config) EnsureDefaults() {
	if strings.TrimSpace(c.Ceiling) == "" {
		c.Ceiling = "0"
	}
	if strings.TrimSpace(c.RewardPerBlock) == "" {
		c.RewardPerBlock = "0"
	}
}

// Validate reports the first malformed field.
func (c Config) Validate() error {
	_, err := c.Settings()
	return err
}

// Settings parses the configuration.
func (c Config) Settings() (Settings, error) {
	c.EnsureDefaults()
	var (
		s   Settings
		err error
	)
	if s.Module, err = parseAddress("Module", c.Module, true); err != nil {
		return Settings{}, err
	}
	fields := []struct {
		name   string
		raw    string
		target *crypto.Address
	}{
		{"Owner", c.Owner, &s.Params.Owner},
		{"Operator", c.Operator, &s.Params.Operator},
		{"DebtAsset", c.DebtAsset, &s.Params.DebtAsset},
		{"PairedAsset", c.PairedAsset, &s.Params.PairedAsset},
		{"ReserveAsset", c.ReserveAsset, &s.Params.ReserveAsset},
	}
	for _, f := range fields {
		if *f.target, err = parseAddress(f.name, f.raw, true); err != nil {
			return Settings{}, err
		}
	}
	if s.Ceiling, err = parseAmount("Ceiling", c.Ceiling); err != nil {
		return Settings{}, err
	}
	if s.RewardPerBlock, err = parseAmount("RewardPerBlock", c.RewardPerBlock); err != nil {
		return Settings{}, err
	}
	s.StartBlock = c.StartBlock
	s.Paused = c.Paused
	s.Params.SettleRewardsBeforeOpen = c.SettleRewardsBeforeOpen
	return s, nil
}

func parseAddress(field, raw string, required bool) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if required {
			return crypto.Address{}, fmt.Errorf("leverage config: %s is required", field)
		}
		return crypto.Address{}, nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("leverage config: %s: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("leverage config: %s: invalid integer %q", field, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("leverage config: %s must not be negative", field)
	}
	return value, nil
}
