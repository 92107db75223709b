package fetcher

import "github.com/rcrowley/go-metrics"

type Metrics struct{}

func (m *Metrics) Query() metrics.Timer {
	return metrics.GetOrRegisterTimer("logsync/fetcher/query", nil)
}

func (m *Metrics) Failed() metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/fetcher/query/failed", nil)
}

func (m *Metrics) Transition(t Transition) metrics.Counter {
	return metrics.GetOrRegisterCounter("logsync/fetcher/"+t.String(), nil)
}

func (m *Metrics) Logs() metrics.Meter {
	return metrics.GetOrRegisterMeter("logsync/fetcher/logs", nil)
}
