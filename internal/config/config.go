// Package config loads StablePay settings from .env, the environment and an optional
// yaml file, plus the persisted contract address override.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lisanmuaddib/stablepay/pkg/db"
	"github.com/lisanmuaddib/stablepay/pkg/logging"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. STABLEPAY_RPC_URL.
	EnvPrefix = "STABLEPAY"

	// OverrideFileName is the default override file under $HOME.
	OverrideFileName = ".stablepay-override.yaml"

	overrideKey = "contract_address"
)

// Config holds everything the binary needs to build its components.
type Config struct {
	Network wallet.NetworkType
	RPCURL  string
	// ChainID overrides the network default when non-zero
	ChainID int64

	FallbackNetwork wallet.NetworkType
	FallbackRPCURL  string
	FallbackChainID int64

	PrivateKey      string
	ContractAddress string
	TokenAddress    string

	// OverrideFile persists a contract address that wins over ContractAddress.
	// OverrideAddress is what it held at load time.
	OverrideFile    string
	OverrideAddress string

	GasProofFallback     bool
	StrictPreflight      bool
	DegradeTokenFailures bool

	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	RefreshInterval     time.Duration

	Database db.Config
	Log      logging.Options
}

// LoadOptions points Load at specific files. Zero values use the defaults.
type LoadOptions struct {
	// ConfigFile is read instead of searching for stablepay.yaml in . and $HOME
	ConfigFile string
	// EnvFile defaults to .env in the working directory
	EnvFile string
}

// Load reads the configuration and validates it. Missing .env, yaml and override
// files are not errors.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("stablepay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Network:              wallet.ParseNetworkType(v.GetString("network")),
		RPCURL:               v.GetString("rpc_url"),
		ChainID:              v.GetInt64("chain_id"),
		FallbackNetwork:      wallet.ParseNetworkType(v.GetString("fallback_network")),
		FallbackRPCURL:       v.GetString("fallback_rpc_url"),
		FallbackChainID:      v.GetInt64("fallback_chain_id"),
		PrivateKey:           strings.TrimPrefix(v.GetString("private_key"), "0x"),
		ContractAddress:      v.GetString("contract_address"),
		TokenAddress:         v.GetString("token_address"),
		OverrideFile:         v.GetString("override_file"),
		GasProofFallback:     v.GetBool("gas_proof_fallback"),
		StrictPreflight:      v.GetBool("strict_preflight"),
		DegradeTokenFailures: v.GetBool("degrade_token_failures"),
		ReceiptTimeout:       v.GetDuration("receipt_timeout"),
		ReceiptPollInterval:  v.GetDuration("receipt_poll_interval"),
		RefreshInterval:      v.GetDuration("refresh_interval"),
		Database: db.Config{
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			Name:          v.GetString("database.name"),
			SSLMode:       v.GetString("database.sslmode"),
			MigrationsDir: v.GetString("database.migrations_dir"),
		},
		Log: logging.Options{
			Level:      v.GetString("log_level"),
			Format:     v.GetString("log_format"),
			File:       v.GetString("log_file"),
			MaxSizeMB:  v.GetInt("log_max_size_mb"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAgeDays: v.GetInt("log_max_age_days"),
		},
	}

	override, err := ReadOverride(cfg.OverrideFile)
	if err != nil {
		return nil, err
	}
	cfg.OverrideAddress = override

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults seeds DB_* and LOG_LEVEL from the plain environment so both those
// and the STABLEPAY_ prefixed names work.
func setDefaults(v *viper.Viper) {
	v.SetDefault("network", string(wallet.LOCAL))
	v.SetDefault("degrade_token_failures", true)
	v.SetDefault("refresh_interval", 30*time.Second)
	v.SetDefault("override_file", defaultOverrideFile())

	dbEnv := db.ConfigFromEnv()
	v.SetDefault("database.host", dbEnv.Host)
	v.SetDefault("database.port", dbEnv.Port)
	v.SetDefault("database.user", dbEnv.User)
	v.SetDefault("database.password", dbEnv.Password)
	v.SetDefault("database.name", dbEnv.Name)
	v.SetDefault("database.sslmode", dbEnv.SSLMode)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("log_level", os.Getenv("LOG_LEVEL"))
	v.SetDefault("log_format", "")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 50)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 30)
}

func defaultOverrideFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, OverrideFileName)
}

// HasRPC reports whether a node is configured. Without one everything runs simulated.
func (c *Config) HasRPC() bool {
	return c.RPCURL != ""
}

// EffectiveContractAddress is the address the connector will try first.
func (c *Config) EffectiveContractAddress() string {
	if c.OverrideAddress != "" {
		return c.OverrideAddress
	}
	return c.ContractAddress
}

// ContractAddressProblems reports malformed contract addresses. They do not fail
// Validate: the connector refuses them and the app stays simulated, which keeps
// "contract clear" usable for repairing a bad override.
func (c *Config) ContractAddressProblems() []error {
	var problems []error
	for _, a := range []struct{ key, addr string }{
		{"contract_address", c.ContractAddress},
		{"override contract_address", c.OverrideAddress},
	} {
		if a.addr == "" {
			continue
		}
		if _, err := wallet.ValidateAddress(a.addr); err != nil {
			problems = append(problems, fmt.Errorf("invalid %s %q: %w", a.key, a.addr, err))
		}
	}
	return problems
}

// Validate checks the token address, keys and ranges.
func (c *Config) Validate() error {
	if c.Network == "" {
		return fmt.Errorf("network is required")
	}
	if c.ChainID < 0 || c.FallbackChainID < 0 {
		return fmt.Errorf("chain_id must not be negative")
	}

	if c.TokenAddress != "" {
		if _, err := wallet.ValidateAddress(c.TokenAddress); err != nil {
			return fmt.Errorf("invalid token_address: %w", err)
		}
	}

	if c.PrivateKey != "" {
		if _, err := wallet.NewKeyManager(c.PrivateKey); err != nil {
			return fmt.Errorf("invalid private_key: %w", err)
		}
	}

	if c.GasProofFallback {
		if c.FallbackNetwork == "" {
			return fmt.Errorf("gas_proof_fallback requires fallback_network")
		}
		if c.FallbackNetwork != c.Network && c.FallbackRPCURL == "" {
			return fmt.Errorf("gas_proof_fallback requires fallback_rpc_url for %s", c.FallbackNetwork)
		}
	}

	if c.ReceiptTimeout < 0 || c.ReceiptPollInterval < 0 {
		return fmt.Errorf("receipt timings must not be negative")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "color", "json":
	default:
		return fmt.Errorf("log_format must be color or json, got %q", c.Log.Format)
	}
	return nil
}

// NetworkConfigs returns the wallet configuration for the primary network and, when
// it has its own endpoint, the fallback network. Known networks start from
// wallet.DefaultNetworkConfigs.
func (c *Config) NetworkConfigs() []wallet.NetworkConfig {
	configs := []wallet.NetworkConfig{c.networkConfig(c.Network, c.RPCURL, c.ChainID)}
	if c.FallbackNetwork != "" && c.FallbackNetwork != c.Network && c.FallbackRPCURL != "" {
		configs = append(configs, c.networkConfig(c.FallbackNetwork, c.FallbackRPCURL, c.FallbackChainID))
	}
	return configs
}

func (c *Config) networkConfig(network wallet.NetworkType, rpcURL string, chainID int64) wallet.NetworkConfig {
	nc, ok := wallet.LookupNetworkConfig(wallet.DefaultNetworkConfigs(), network)
	if !ok {
		nc = wallet.NetworkConfig{Type: network, MaxRetries: 3, MinConfirmations: 1}
	}
	nc.RPCURL = rpcURL
	if chainID > 0 {
		nc.ChainID = chainID
	}
	if c.ReceiptTimeout > 0 {
		nc.ReceiptTimeout = c.ReceiptTimeout
	}
	if c.ReceiptPollInterval > 0 {
		nc.ReceiptPollInterval = c.ReceiptPollInterval
	}
	return nc
}
