package logsync

import "github.com/rcrowley/go-metrics"

type Metrics struct{}

func (m *Metrics) Runs() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/sync/runs", nil)
}

func (m *Metrics) Stored() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/sync/stored", nil)
}

func (m *Metrics) Failed() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/sync/failed", nil)
}

func (m *Metrics) Duration() metrics.Timer {
	return metrics.GetOrRegisterTimer("logsync/sync/duration", nil)
}

func (m *Metrics) Head() metrics.Gauge {
	return metrics.GetOrRegisterGauge("logsync/sync/head", nil)
}

func (m *Metrics) HeadRetries() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/sync/head/retries", nil)
}
