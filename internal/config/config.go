package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pulkyeet/pool-spread-monitor/internal/arbitrage"
	"github.com/pulkyeet/pool-spread-monitor/internal/eth"
)

// defaults watch WETH/USDC on arbitrum
const (
	DefaultPoolA        = "0xC6962004f452bE9203591991D15f6b388e09E8D0"
	DefaultPoolAName    = "uniswap_v3"
	DefaultPoolB        = "0xf3eb87c1f6020982173c908e7eb31aa66c1f0296"
	DefaultPoolBName    = "sushiswap_v3"
	DefaultThreshold    = "0.005"
	DefaultPollInterval = 10000
	DefaultGasLimit     = 200000
	DefaultReadTimeout  = 10000
)

type PoolCfg struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type Config struct {
	RPCURL string  `yaml:"rpc_url"`
	PoolA  PoolCfg `yaml:"pool_a"`
	PoolB  PoolCfg `yaml:"pool_b"`

	// ThresholdFraction is kept as text so "0.005" parses to exactly 1/200.
	ThresholdFraction string `yaml:"threshold_fraction"`
	PollIntervalMs    int    `yaml:"poll_interval_ms"`
	GasLimitEstimate  uint64 `yaml:"gas_limit_estimate"`
	ReadTimeoutMs     int    `yaml:"read_timeout_ms"`

	MetricsAddr string `yaml:"metrics_addr"`
	CacheDB     string `yaml:"cache_db"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads .env if present, then the yaml file at path (optional), then
// environment overrides, and validates the result. Every failure is an
// *arbitrage.ConfigurationError.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, cfgErr("config_file", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, cfgErr("config_file", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaults() *Config {
	c := &Config{
		PoolA:             PoolCfg{Name: DefaultPoolAName, Address: DefaultPoolA},
		PoolB:             PoolCfg{Name: DefaultPoolBName, Address: DefaultPoolB},
		ThresholdFraction: DefaultThreshold,
		PollIntervalMs:    DefaultPollInterval,
		GasLimitEstimate:  DefaultGasLimit,
		ReadTimeoutMs:     DefaultReadTimeout,
	}
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key, field string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfgErr(field, fmt.Errorf("%s=%q: %w", key, v, err))
		}
		*dst = n
		return nil
	}

	if v := RPCURLFromEnv(); v != "" {
		c.RPCURL = v
	}
	setString("POOL_A", &c.PoolA.Address)
	setString("POOL_A_NAME", &c.PoolA.Name)
	setString("POOL_B", &c.PoolB.Address)
	setString("POOL_B_NAME", &c.PoolB.Name)
	setString("THRESHOLD_FRACTION", &c.ThresholdFraction)
	setString("METRICS_ADDR", &c.MetricsAddr)
	setString("CACHE_DB", &c.CacheDB)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	if err := setInt("POLL_INTERVAL_MS", "poll_interval_ms", &c.PollIntervalMs); err != nil {
		return err
	}
	if err := setInt("READ_TIMEOUT_MS", "read_timeout_ms", &c.ReadTimeoutMs); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("GAS_LIMIT_ESTIMATE"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfgErr("gas_limit_estimate", fmt.Errorf("GAS_LIMIT_ESTIMATE=%q: %w", v, err))
		}
		c.GasLimitEstimate = n
	}
	return nil
}

// RPCURLFromEnv prefers RPC_URL, then ALCHEMY_URL, then an infura key.
func RPCURLFromEnv() string {
	if v := os.Getenv("RPC_URL"); v != "" {
		return v
	}
	if v := os.Getenv("ALCHEMY_URL"); v != "" {
		return v
	}
	if key := os.Getenv("INFURA_API_KEY"); key != "" {
		return eth.ArbitrumInfuraURL + key
	}
	return ""
}

func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return cfgErr("rpc_url", errors.New("set RPC_URL, ALCHEMY_URL or INFURA_API_KEY"))
	}
	for _, p := range []struct {
		field string
		pool  PoolCfg
	}{{"pool_a", c.PoolA}, {"pool_b", c.PoolB}} {
		if !common.IsHexAddress(p.pool.Address) {
			return cfgErr(p.field, fmt.Errorf("%q is not a hex address", p.pool.Address))
		}
	}
	if common.HexToAddress(c.PoolA.Address) == common.HexToAddress(c.PoolB.Address) {
		return cfgErr("pools", errors.New("pool_a and pool_b must differ"))
	}
	if c.ReadTimeoutMs <= 0 {
		return cfgErr("read_timeout_ms", fmt.Errorf("must be positive, got %d", c.ReadTimeoutMs))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return cfgErr("log_level", err)
	}
	if _, err := c.Arbitrage(); err != nil {
		return err
	}
	return nil
}

// Arbitrage builds the immutable decision config.
func (c *Config) Arbitrage() (arbitrage.Config, error) {
	threshold, ok := new(big.Rat).SetString(c.ThresholdFraction)
	if !ok {
		return arbitrage.Config{}, cfgErr("threshold_fraction", fmt.Errorf("%q is not a number", c.ThresholdFraction))
	}
	return arbitrage.NewConfig(threshold, c.PollInterval(), c.GasLimitEstimate)
}

func (c *Config) Pools() (arbitrage.Pool, arbitrage.Pool) {
	return arbitrage.Pool{Name: c.PoolA.Name, Address: common.HexToAddress(c.PoolA.Address)},
		arbitrage.Pool{Name: c.PoolB.Name, Address: common.HexToAddress(c.PoolB.Address)}
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func cfgErr(field string, err error) error {
	return &arbitrage.ConfigurationError{Field: field, Err: err}
}
