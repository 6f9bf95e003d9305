package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"horus/crypto"
)

const testKeystorePassphrase = "test-passphrase"

func testAddress(prefix crypto.AddressPrefix, suffix byte) string {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0x42
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(prefix, raw).String()
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func leverageTable(extra string) string {
	return fmt.Sprintf(`DataDir = "/var/lib/horus"
Environment = "staging"

[leverage]
Module = "%s"
Owner = "%s"
Operator = "%s"
DebtAsset = "%s"
PairedAsset = "%s"
ReserveAsset = "%s"
Ceiling = "500000000000000000000000"
RewardPerBlock = "1000"
StartBlock = 42
%s`,
		testAddress(crypto.ModulePrefix, 1),
		testAddress(crypto.AccountPrefix, 2),
		testAddress(crypto.AccountPrefix, 3),
		testAddress(crypto.AssetPrefix, 4),
		testAddress(crypto.AssetPrefix, 5),
		testAddress(crypto.AssetPrefix, 6),
		extra,
	)
}

func TestLoadParsesLeverageSection(t *testing.T) {
	path := writeConfig(t, leverageTable("SettleRewardsBeforeOpen = true\nPaused = true\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DataDir != "/var/lib/horus" || cfg.Environment != "staging" {
		t.Fatalf("unexpected top-level settings: %+v", cfg)
	}
	settings, err := cfg.Leverage.Settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Ceiling.String() != "500000000000000000000000" {
		t.Fatalf("unexpected ceiling: %s", settings.Ceiling)
	}
	if settings.RewardPerBlock.Int64() != 1000 || settings.StartBlock != 42 {
		t.Fatalf("unexpected reward settings: %+v", settings)
	}
	if !settings.Paused || !settings.Params.SettleRewardsBeforeOpen {
		t.Fatalf("expected switches to be set: %+v", settings)
	}
	if settings.Params.Owner.String() != testAddress(crypto.AccountPrefix, 2) {
		t.Fatalf("unexpected owner: %s", settings.Params.Owner)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	contents := strings.Replace(leverageTable(""), `DataDir = "/var/lib/horus"`+"\n"+`Environment = "staging"`, "", 1)
	contents = strings.Replace(contents, `RewardPerBlock = "1000"`, "", 1)
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DataDir != "./horus-data" || cfg.Environment != "dev" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Leverage.RewardPerBlock != "0" {
		t.Fatalf("expected zero reward default, got %q", cfg.Leverage.RewardPerBlock)
	}
}

func TestLoadRejectsInvalidLeverageSection(t *testing.T) {
	contents := strings.Replace(leverageTable(""), `Ceiling = "500000000000000000000000"`, `Ceiling = "lots"`, 1)
	_, err := Load(writeConfig(t, contents))
	if err == nil || !strings.Contains(err.Error(), "Ceiling") {
		t.Fatalf("expected ceiling error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, leverageTable("Leverage = 3\n")))
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	contents := strings.Replace(leverageTable(""), `"staging"`, `"moon"`, 1)
	if _, err := Load(writeConfig(t, contents)); err == nil {
		t.Fatalf("expected environment error")
	}
}

func TestLoadWithoutPassphraseFailsToCreateDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error when no keystore passphrase is provided")
	}
}

func TestLoadCreatesDefaultWithOperatorKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path, WithKeystorePassphrase(testKeystorePassphrase))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if _, err := os.Stat(cfg.OperatorKeystorePath); err != nil {
		t.Fatalf("expected keystore file to exist: %v", err)
	}
	key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, testKeystorePassphrase)
	if err != nil {
		t.Fatalf("failed to decrypt keystore: %v", err)
	}
	if cfg.Leverage.Owner != key.PubKey().Address().String() {
		t.Fatalf("expected owner to be the generated key, got %s", cfg.Leverage.Owner)
	}

	// The written file loads back and validates.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Leverage.Module != cfg.Leverage.Module {
		t.Fatalf("module address changed across reload")
	}
}

func TestLoadGatewaySection(t *testing.T) {
	contents := strings.Replace(leverageTable(""), "[leverage]", `[gateway]
ListenAddress = ":8080"
RequestsPerMinute = 30.0
Burst = 5

[leverage]`, 1)
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Gateway.ListenAddress != ":8080" || cfg.Gateway.Burst != 5 || cfg.Gateway.RequestsPerMinute != 30 {
		t.Fatalf("unexpected gateway settings: %+v", cfg.Gateway)
	}
	if cfg.Gateway.FallbackIndex != "1000000000" {
		t.Fatalf("expected default index, got %q", cfg.Gateway.FallbackIndex)
	}

	defaults, err := Load(writeConfig(t, leverageTable("")))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if defaults.Gateway.ListenAddress != defaultListenAddress {
		t.Fatalf("expected default listen address, got %q", defaults.Gateway.ListenAddress)
	}
}

func TestLoadRejectsInvalidGateway(t *testing.T) {
	for _, table := range []string{"Burst = -1", `FallbackIndex = "0"`} {
		contents := strings.Replace(leverageTable(""), "[leverage]", "[gateway]\n"+table+"\n\n[leverage]", 1)
		if _, err := Load(writeConfig(t, contents)); err == nil || !strings.Contains(err.Error(), "gateway") {
			t.Fatalf("%s: expected gateway error, got %v", table, err)
		}
	}
}

func TestLoadTelemetrySection(t *testing.T) {
	contents := strings.Replace(leverageTable(""), "[leverage]", `[telemetry]
Endpoint = "otel-collector:4318"
Headers = "x-tenant=horus"
Traces = true

[leverage]`, 1)
	cfg, err := Load(writeConfig(t, contents))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Telemetry.Endpoint != "otel-collector:4318" || !cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		t.Fatalf("unexpected telemetry settings: %+v", cfg.Telemetry)
	}

	defaults, err := Load(writeConfig(t, leverageTable("")))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if defaults.Telemetry.Endpoint != defaultTelemetryEndpoint || defaults.Telemetry.Traces {
		t.Fatalf("unexpected telemetry defaults: %+v", defaults.Telemetry)
	}

	bad := strings.Replace(leverageTable(""), "[leverage]", "[telemetry]\nEndpoint = \"http://collector:4318\"\n\n[leverage]", 1)
	if _, err := Load(writeConfig(t, bad)); err == nil || !strings.Contains(err.Error(), "telemetry") {
		t.Fatalf("expected telemetry error, got %v", err)
	}
}
