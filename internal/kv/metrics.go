package kv

import "github.com/rcrowley/go-metrics"

type Metrics struct{}

func (m *Metrics) CacheHit() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/kv/cache/hit", nil)
}

func (m *Metrics) CacheMiss() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/kv/cache/miss", nil)
}
