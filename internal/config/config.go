package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "LOGSYNC"

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend   string
	Path      string
	DSN       string
	URI       string
	Database  string
	Table     string
	CacheSize int
}

// FetchPolicy holds the adaptive window bounds.
type FetchPolicy struct {
	InitialBatchSize uint64
	MinBatchSize     uint64
	RetryDelay       time.Duration
}

// newViper merges config file, environment variables, and flags. defaults runs before
// flags are bound so that unset flags fall through to config file and env values.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
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
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func setStoreDefaults(v *viper.Viper) {
	v.SetDefault("store", "sqlite")
	v.SetDefault("store-path", "./data/logsync.db")
	v.SetDefault("mongo-uri", "mongodb://localhost:27017")
	v.SetDefault("mongo-database", "logsync")
	v.SetDefault("table", "kv_store")
	v.SetDefault("cache-size", 0)
}

func setFetchDefaults(v *viper.Viper) {
	v.SetDefault("initial-batch-size", uint64(50000))
	v.SetDefault("min-batch-size", uint64(100))
	v.SetDefault("retry-delay", time.Duration(0))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
}

func readStore(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend:   strings.ToLower(v.GetString("store")),
		Path:      v.GetString("store-path"),
		DSN:       v.GetString("pg-dsn"),
		URI:       v.GetString("mongo-uri"),
		Database:  v.GetString("mongo-database"),
		Table:     v.GetString("table"),
		CacheSize: v.GetInt("cache-size"),
	}
}

func readFetchPolicy(v *viper.Viper) FetchPolicy {
	return FetchPolicy{
		InitialBatchSize: v.GetUint64("initial-batch-size"),
		MinBatchSize:     v.GetUint64("min-batch-size"),
		RetryDelay:       v.GetDuration("retry-delay"),
	}
}

// StoreOnlyConfig is used by commands that only touch the key-value store.
type StoreOnlyConfig struct {
	Store    StoreConfig
	Address  string
	Events   []string
	Prefix   string
	Out      string
	LogLevel string
}

// LoadStore loads the settings of the export and checkpoint commands.
func LoadStore(cfgFile string, flags *pflag.FlagSet) (StoreOnlyConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setStoreDefaults(v)
		v.SetDefault("out", "./data/export.jsonl")
	})
	if err != nil {
		return StoreOnlyConfig{}, err
	}

	return StoreOnlyConfig{
		Store:    readStore(v),
		Address:  v.GetString("address"),
		Events:   getStringSlice(v, "event"),
		Prefix:   v.GetString("prefix"),
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}, nil
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
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
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
