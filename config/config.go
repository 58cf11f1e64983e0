package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"excelsior/crypto"
	"excelsior/native/params"

	"github.com/BurntSushi/toml"
)

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"

	DefaultNetworkName  = "excelsior-local"
	DefaultJWTSecretEnv = "EXCELSIOR_JWT_SECRET"
)

type Config struct {
	DataDir              string `toml:"DataDir"`
	Backend              string `toml:"Backend"`
	RPCAddress           string `toml:"RPCAddress"`
	NetworkName          string `toml:"NetworkName"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`
	AllowMigrate         bool   `toml:"AllowMigrate"`

	RPC       RPC              `toml:"rpc"`
	Telemetry Telemetry        `toml:"telemetry"`
	History   History          `toml:"history"`
	Log       Log              `toml:"log"`
	Economics params.Economics `toml:"economics"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	cfg := &Config{
		DataDir:     "./excelsior-data",
		Backend:     BackendLevelDB,
		RPCAddress:  "127.0.0.1:8645",
		NetworkName: DefaultNetworkName,
		RPC: RPC{
			JWTSecretEnv:       DefaultJWTSecretEnv,
			JWTIssuer:          "excelsior",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   15,
			MaxBodyBytes:       1 << 20,
		},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
		History:   History{Enabled: true, Path: "history.db"},
		Log:       Log{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Economics: params.DefaultEconomics(),
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	defaults := Default()
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = defaults.NetworkName
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = defaults.Backend
	}
	if strings.TrimSpace(cfg.RPC.JWTSecretEnv) == "" {
		cfg.RPC.JWTSecretEnv = defaults.RPC.JWTSecretEnv
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = defaults.RPC.MaxBodyBytes
	}
	if cfg.RPC.ReadTimeoutSecs == 0 {
		cfg.RPC.ReadTimeoutSecs = defaults.RPC.ReadTimeoutSecs
	}
	if cfg.RPC.WriteTimeoutSecs == 0 {
		cfg.RPC.WriteTimeoutSecs = defaults.RPC.WriteTimeoutSecs
	}
	cfg.Economics = cfg.Economics.Normalize()
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file together with
// an operator keystore.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.OperatorKeystorePath = keystorePath

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

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}

// HistoryPath resolves the history database path against DataDir.
func (c *Config) HistoryPath() string {
	if c == nil || c.History.Path == "" {
		return ""
	}
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(c.DataDir, c.History.Path)
}

// StorePath returns the directory or file used by the configured backend.
func (c *Config) StorePath() string {
	switch c.Backend {
	case BackendBolt:
		return filepath.Join(c.DataDir, "ledger.bolt")
	case BackendMemory:
		return ""
	default:
		return filepath.Join(c.DataDir, "ledger")
	}
}
