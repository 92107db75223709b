package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FetchConfig holds the settings of the fetch command.
type FetchConfig struct {
	RPCURL    string
	Addresses []string
	ABI       string
	Events    []string
	Indexed   map[string][]interface{}
	FromBlock uint64
	ToBlock   uint64
	Fetch     FetchPolicy
	Out       string
	LogLevel  string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setFetchDefaults(v)
		v.SetDefault("abi", "erc20")
		v.SetDefault("out", "./data/logs.jsonl")
	})
	if err != nil {
		return FetchConfig{}, err
	}

	events := getStringSlice(v, "event")
	indexed, err := getIndexed(v, "indexed", events)
	if err != nil {
		return FetchConfig{}, err
	}

	return FetchConfig{
		RPCURL:    v.GetString("rpc"),
		Addresses: getStringSlice(v, "address"),
		ABI:       v.GetString("abi"),
		Events:    events,
		Indexed:   indexed,
		FromBlock: v.GetUint64("from"),
		ToBlock:   v.GetUint64("to"),
		Fetch:     readFetchPolicy(v),
		Out:       v.GetString("out"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

// TopicsConfig holds the settings of the topics command.
type TopicsConfig struct {
	ABI      string
	Events   []string
	Indexed  map[string][]interface{}
	LogLevel string
}

// LoadTopics loads the settings of the topics command.
func LoadTopics(cfgFile string, flags *pflag.FlagSet) (TopicsConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("abi", "erc20")
	})
	if err != nil {
		return TopicsConfig{}, err
	}

	events := getStringSlice(v, "event")
	indexed, err := getIndexed(v, "indexed", events)
	if err != nil {
		return TopicsConfig{}, err
	}

	return TopicsConfig{
		ABI:      v.GetString("abi"),
		Events:   events,
		Indexed:  indexed,
		LogLevel: v.GetString("log-level"),
	}, nil
}
