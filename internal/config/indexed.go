package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// getIndexed reads the per-event indexed values. Each event maps to either a list or a
// ";"-separated string; "*" or an empty item leaves its slot unfiltered and "a|b" matches
// either value. Keys are matched case-insensitively against events because viper folds
// config file keys to lower case.
func getIndexed(v *viper.Viper, key string, events []string) (map[string][]interface{}, error) {
	if !v.IsSet(key) {
		return nil, nil
	}

	raw := make(map[string]interface{})
	switch typed := v.Get(key).(type) {
	case map[string]interface{}:
		raw = typed
	case map[string]string:
		for k, val := range typed {
			raw[k] = val
		}
	case string:
		for k, val := range parseStringMap(typed) {
			raw[k] = val
		}
	case []string:
		for k, val := range parseStringMap(strings.Join(typed, ",")) {
			raw[k] = val
		}
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", key, typed)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(map[string][]interface{}, len(raw))
	for name, val := range raw {
		event := matchEvent(name, events)

		var items []interface{}
		switch typed := val.(type) {
		case string:
			for _, item := range strings.Split(typed, ";") {
				items = append(items, indexedItem(item))
			}
		case []interface{}:
			for _, item := range typed {
				if s, ok := item.(string); ok {
					items = append(items, indexedItem(s))
					continue
				}
				items = append(items, item)
			}
		case nil:
		default:
			items = append(items, typed)
		}
		out[event] = items
	}
	return out, nil
}

func indexedItem(item string) interface{} {
	item = strings.TrimSpace(item)
	if item == "" || item == "*" {
		return nil
	}
	if strings.Contains(item, "|") {
		var alternatives []interface{}
		for _, alt := range strings.Split(item, "|") {
			if alt = strings.TrimSpace(alt); alt != "" {
				alternatives = append(alternatives, alt)
			}
		}
		return alternatives
	}
	return item
}

func matchEvent(name string, events []string) string {
	for _, event := range events {
		if strings.EqualFold(event, name) {
			return event
		}
	}
	return name
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
