// Package config loads process configuration for a daglayer node: shard
// topology, mempool policy, the parallel planner's worker pool size, and
// each mining stream's cadence and difficulty retarget window; there is no
// initial-difficulty option (the mining package fixes the starting
// target). It mirrors the
// teacher's viper-based loader but rejects unknown keys outright, since a
// typo'd option here silently changes consensus-adjacent behavior rather
// than cosmetic server settings.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"daglayer/internal/env"
	"daglayer/internal/errs"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified process configuration for a daglayer node.
type Config struct {
	Shard struct {
		Count            uint32 `mapstructure:"count" json:"count"`
		Strategy         string `mapstructure:"strategy" json:"strategy"` // consistent_hashing|address_based|round_robin
		EnableCrossShard bool   `mapstructure:"enable_cross_shard" json:"enable_cross_shard"`
		ReversalHorizon  uint64 `mapstructure:"reversal_horizon" json:"reversal_horizon"`
	} `mapstructure:"shard" json:"shard"`

	Mempool struct {
		Capacity int    `mapstructure:"capacity" json:"capacity"`
		Policy   string `mapstructure:"policy" json:"policy"` // fifo|fee_based|random|hybrid|time_weighted
	} `mapstructure:"mempool" json:"mempool"`

	Planner struct {
		WorkerPoolSize int `mapstructure:"worker_pool_size" json:"worker_pool_size"`
	} `mapstructure:"planner" json:"planner"`

	Mining struct {
		StreamA StreamConfig `mapstructure:"stream_a" json:"stream_a"`
		StreamB StreamConfig `mapstructure:"stream_b" json:"stream_b"`
		StreamC StreamConfig `mapstructure:"stream_c" json:"stream_c"`
	} `mapstructure:"mining" json:"mining"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// StreamConfig carries a single mining stream's target cadence in
// milliseconds and its difficulty retarget window in blocks. It has no
// initial-difficulty field.
type StreamConfig struct {
	CadenceMS     int `mapstructure:"cadence_ms" json:"cadence_ms"`
	RetargetEvery int `mapstructure:"retarget_every" json:"retarget_every"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files, merges an environment-specific overlay
// (if profile is non-empty), then applies automatic environment variable
// overrides. Unknown keys anywhere in the merged configuration are
// rejected rather than silently ignored.
func Load(profile string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, errs.Wrap(err, "load config")
	}

	if profile != "" {
		viper.SetConfigName(profile)
		if err := viper.MergeInConfig(); err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("merge %s config", profile))
		}
	}

	viper.AutomaticEnv()

	if err := viper.UnmarshalExact(&AppConfig); err != nil {
		return nil, errs.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads a .env overlay (if present) then configuration using
// the DAGLAYER_ENV environment variable to select the overlay profile.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()
	return Load(env.OrDefault("DAGLAYER_ENV", ""))
}

// Default returns a Config populated with the node's hardcoded defaults,
// used when no configuration file is present (e.g. in tests).
func Default() Config {
	var c Config
	c.Shard.Count = 4
	c.Shard.Strategy = "consistent_hashing"
	c.Shard.EnableCrossShard = true
	c.Shard.ReversalHorizon = 100
	c.Mempool.Capacity = 10000
	c.Mempool.Policy = "hybrid"
	c.Planner.WorkerPoolSize = 8
	c.Mining.StreamA = StreamConfig{CadenceMS: 10000, RetargetEvery: 10}
	c.Mining.StreamB = StreamConfig{CadenceMS: 1000, RetargetEvery: 50}
	c.Mining.StreamC = StreamConfig{CadenceMS: 100, RetargetEvery: 200}
	c.Logging.Level = "info"
	return c
}
