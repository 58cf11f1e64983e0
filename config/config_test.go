package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"excelsior/native/params"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendLevelDB, cfg.Backend)
	require.Equal(t, params.DefaultEconomics(), cfg.Economics)
	require.Equal(t, filepath.Join(dir, "operator.keystore"), cfg.OperatorKeystorePath)
	require.FileExists(t, path)
	require.FileExists(t, cfg.OperatorKeystorePath)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPC, again.RPC)
	require.Equal(t, cfg.Economics, again.Economics)
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	keystore := filepath.Join(dir, "op.keystore")
	contents := `DataDir = "` + filepath.ToSlash(dir) + `"
Backend = "Bolt"
RPCAddress = "0.0.0.0:9000"
OperatorKeystorePath = "` + filepath.ToSlash(keystore) + `"
AllowMigrate = true

[rpc]
JWTSecretEnv = "TEST_SECRET"
RateLimitPerSecond = 5
RateLimitBurst = 10
TrustedProxies = ["10.0.0.1"]

[telemetry]
Endpoint = "collector:4318"
Headers = "api-key=abc"
Traces = true

[history]
Enabled = true
Path = "events.db"

[log]
Level = "debug"

[economics]
ReserveShareBps = 7000
ZeroStakePolicy = "Reserve"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendBolt, cfg.Backend)
	require.True(t, cfg.AllowMigrate)
	require.Equal(t, filepath.Join(dir, "ledger.bolt"), cfg.StorePath())
	require.Equal(t, filepath.Join(dir, "events.db"), cfg.HistoryPath())
	require.Equal(t, uint32(7000), cfg.Economics.ReserveShareBps)
	require.Equal(t, params.ZeroStakeReserve, cfg.Economics.ZeroStakePolicy)
	require.Equal(t, params.DefaultEconomics().BuyPrice, cfg.Economics.BuyPrice)
	require.Equal(t, int64(1<<20), cfg.RPC.MaxBodyBytes)
	require.Equal(t, []string{"10.0.0.1"}, cfg.RPC.TrustedProxies)
	require.Equal(t, "debug", cfg.Log.Options().Level)
	require.FileExists(t, keystore)

	otelCfg := cfg.Telemetry.OtelConfig("excelsiord")
	require.Equal(t, "excelsiord", otelCfg.ServiceName)
	require.Equal(t, map[string]string{"api-key": "abc"}, otelCfg.Headers)
	require.True(t, otelCfg.Traces)

	t.Setenv("TEST_SECRET", " s3cret ")
	require.Equal(t, []byte("s3cret"), cfg.RPC.JWTSecret())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "127.0.0.1:1"
Bogus = 1

[economics]
Unknown = 2
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Bogus"))
	require.True(t, strings.Contains(err.Error(), "economics.Unknown"))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Backend = "rocks"
	cfg.RPCAddress = ""
	cfg.RPC.RateLimitBurst = 0
	cfg.RPC.TrustedProxies = []string{"gateway.local"}
	cfg.History.Path = ""
	cfg.Telemetry.Metrics = true
	cfg.Telemetry.Endpoint = ""
	cfg.Economics.ReserveShareBps = 20_000

	err := Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"Backend", "RPCAddress", "RateLimitBurst", "TrustedProxies", "history.Path", "telemetry.Endpoint", "ReserveShareBps"} {
		require.Contains(t, err.Error(), want)
	}

	require.NoError(t, Validate(Default()))
}

func TestMemoryBackendNeedsNoDataDir(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendMemory
	cfg.DataDir = ""
	cfg.History.Enabled = false
	require.NoError(t, Validate(cfg))
	require.Empty(t, cfg.StorePath())
	require.Empty(t, (*Config)(nil).HistoryPath())
}
