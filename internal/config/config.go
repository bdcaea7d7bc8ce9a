package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CURVEPOOL"

// Config holds the index command configuration loaded from flags, env, or
// config file.
type Config struct {
	RPCURL               string
	FromBlock            uint64
	ToBlock              uint64
	Addresses            []string
	Topic0               []string
	BatchSize            uint64
	Out                  string
	Checkpoint           string
	CheckpointEnabled    bool
	MaxRetries           int
	RetryBackoff         time.Duration
	TimestampConcurrency int
	LogLevel             string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":            uint64(2000),
		"out":                   "./data/logs.jsonl",
		"checkpoint":            "./data/checkpoint.json",
		"checkpoint-enabled":    true,
		"max-retries":           5,
		"retry-backoff":         500 * time.Millisecond,
		"timestamp-concurrency": 8,
		"log-level":             "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:               v.GetString("rpc"),
		FromBlock:            v.GetUint64("from"),
		ToBlock:              v.GetUint64("to"),
		Addresses:            getStringSlice(v, "address"),
		Topic0:               getStringSlice(v, "topic0"),
		BatchSize:            v.GetUint64("batch-size"),
		Out:                  v.GetString("out"),
		Checkpoint:           v.GetString("checkpoint"),
		CheckpointEnabled:    v.GetBool("checkpoint-enabled"),
		MaxRetries:           v.GetInt("max-retries"),
		RetryBackoff:         v.GetDuration("retry-backoff"),
		TimestampConcurrency: v.GetInt("timestamp-concurrency"),
		LogLevel:             v.GetString("log-level"),
	}

	return cfg, nil
}

// newViper layers defaults, CURVEPOOL_* env, flags and an optional config
// file. Without cfgFile a missing ./config.* is not an error.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
