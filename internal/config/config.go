package config

import (
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DefaultMaxMsgNum  = 30
	DefaultRPCTimeout = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultKeyStore   = "test"
)

var validate = validator.New()

// Config is the relayer-style configuration file: global settings plus one entry per chain.
type Config struct {
	Global    GlobalConfig    `mapstructure:"global" toml:"global"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`
	Chains    []ChainConfig   `mapstructure:"chains" toml:"chains" validate:"required,min=1,dive"`
}

type GlobalConfig struct {
	LogLevel string `mapstructure:"log_level" toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// TelemetryConfig configures the optional Prometheus Pushgateway the CLI reports to.
type TelemetryConfig struct {
	PushURL string `mapstructure:"push_url" toml:"push_url" validate:"omitempty,url"`
	Job     string `mapstructure:"job" toml:"job"`
}

// ChainConfig holds everything needed to reach and sign for one chain.
type ChainConfig struct {
	ID            string        `mapstructure:"id" toml:"id" validate:"required"`
	RPCAddr       string        `mapstructure:"rpc_addr" toml:"rpc_addr" validate:"omitempty,url"`
	GRPCAddr      string        `mapstructure:"grpc_addr" toml:"grpc_addr" validate:"required"`
	AccountPrefix string        `mapstructure:"account_prefix" toml:"account_prefix" validate:"required"`
	KeyName       string        `mapstructure:"key_name" toml:"key_name" validate:"required"`
	KeyStoreType  string        `mapstructure:"key_store_type" toml:"key_store_type" validate:"omitempty,oneof=test file os"`
	KeyDir        string        `mapstructure:"key_dir" toml:"key_dir"`
	MaxMsgNum     int           `mapstructure:"max_msg_num" toml:"max_msg_num" validate:"gte=0"`
	DefaultGas    uint64        `mapstructure:"default_gas" toml:"default_gas"`
	GasMultiplier float64       `mapstructure:"gas_multiplier" toml:"gas_multiplier" validate:"gte=0"`
	GasPrice      GasPrice      `mapstructure:"gas_price" toml:"gas_price"`
	RPCTimeout    time.Duration `mapstructure:"rpc_timeout" toml:"rpc_timeout"`
	MaxRetries    uint          `mapstructure:"max_retries" toml:"max_retries"`
}

type GasPrice struct {
	Price float64 `mapstructure:"price" toml:"price" validate:"gte=0"`
	Denom string  `mapstructure:"denom" toml:"denom"`
}

// String renders the gas price the way the SDK tx factory expects it, e.g. "0.025stake".
func (g GasPrice) String() string {
	if g.Denom == "" {
		return ""
	}
	return fmt.Sprintf("%g%s", g.Price, g.Denom)
}

// Load reads the TOML configuration at path, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Chains {
		ch := &c.Chains[i]
		if ch.MaxMsgNum == 0 {
			ch.MaxMsgNum = DefaultMaxMsgNum
		}
		if ch.RPCTimeout == 0 {
			ch.RPCTimeout = DefaultRPCTimeout
		}
		if ch.MaxRetries == 0 {
			ch.MaxRetries = DefaultMaxRetries
		}
		if ch.KeyStoreType == "" {
			ch.KeyStoreType = DefaultKeyStore
		}
	}
	if c.Telemetry.Job == "" {
		c.Telemetry.Job = "ibcsend"
	}
}

// Validate runs the struct tag checks and the cross-chain checks the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Chains))
	for _, ch := range c.Chains {
		if _, ok := seen[ch.ID]; ok {
			return fmt.Errorf("invalid configuration: duplicate chain id '%s'", ch.ID)
		}
		seen[ch.ID] = struct{}{}
	}

	return nil
}

// FindChain returns the configuration for the given chain id.
func (c *Config) FindChain(id string) (*ChainConfig, bool) {
	for i := range c.Chains {
		if c.Chains[i].ID == id {
			return &c.Chains[i], true
		}
	}
	return nil, false
}

// WithKeyName returns a copy of the configuration in which the chain identified by id signs
// with keyName. The receiver is left untouched.
func (c *Config) WithKeyName(id, keyName string) (*Config, error) {
	out := *c
	out.Chains = make([]ChainConfig, len(c.Chains))
	copy(out.Chains, c.Chains)

	ch, ok := out.FindChain(id)
	if !ok {
		return nil, &MissingChainError{Side: SideSource, ChainID: id}
	}
	ch.KeyName = keyName

	return &out, nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
