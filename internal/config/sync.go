package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SyncConfig holds the settings of the sync command.
type SyncConfig struct {
	RPCURL       string
	Address      string
	ABI          string
	Events       []string
	Indexed      map[string][]interface{}
	StartBlock   uint64
	MaxBlockSpan uint64
	Fetch        FetchPolicy
	KeyScheme    string
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Store        StoreConfig
	LogLevel     string
}

// LoadSync merges config file, environment variables, and flags into SyncConfig.
func LoadSync(cfgFile string, flags *pflag.FlagSet) (SyncConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setStoreDefaults(v)
		setFetchDefaults(v)
		v.SetDefault("abi", "erc20")
		v.SetDefault("max-block-span", uint64(100000))
		v.SetDefault("key-scheme", "block")
	})
	if err != nil {
		return SyncConfig{}, err
	}

	events := getStringSlice(v, "event")
	indexed, err := getIndexed(v, "indexed", events)
	if err != nil {
		return SyncConfig{}, err
	}

	cfg := SyncConfig{
		RPCURL:       v.GetString("rpc"),
		Address:      v.GetString("address"),
		ABI:          v.GetString("abi"),
		Events:       events,
		Indexed:      indexed,
		StartBlock:   v.GetUint64("start-block"),
		MaxBlockSpan: v.GetUint64("max-block-span"),
		Fetch:        readFetchPolicy(v),
		KeyScheme:    strings.ToLower(v.GetString("key-scheme")),
		Interval:     v.GetDuration("interval"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Store:        readStore(v),
		LogLevel:     v.GetString("log-level"),
	}

	switch cfg.KeyScheme {
	case "block", "tx":
	default:
		return SyncConfig{}, fmt.Errorf("unknown key scheme %q", cfg.KeyScheme)
	}

	return cfg, nil
}
