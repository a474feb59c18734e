// Package metrics is a small in-memory registry for operational counters,
// gauges, and timers, served as JSON by the daemon's /metrics endpoint.
package metrics

import (
	"sync"
	"time"
)

// Metric represents a single metric with its metadata
type Metric struct {
	Name        string            `json:"name"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	LastUpdate  time.Time         `json:"last_update"`
}

// TimerMetric stores timing information
type TimerMetric struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Average float64 `json:"avg_ms"`
}

// Registry manages all metrics in memory
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	gauges    map[string]*Metric
	timers    map[string]*TimerMetric
	startTime time.Time
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		gauges:    make(map[string]*Metric),
		timers:    make(map[string]*TimerMetric),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}

// IncrementCounter increments a counter metric by one
func (r *Registry) IncrementCounter(name, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.counters[name]
	if m == nil {
		m = &Metric{Name: name, Description: description}
		r.counters[name] = m
	}
	m.Value++
	m.LastUpdate = time.Now()
}

// SetGauge sets a gauge metric to the given value
func (r *Registry) SetGauge(name string, value float64, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.gauges[name]
	if m == nil {
		m = &Metric{Name: name, Description: description}
		r.gauges[name] = m
	}
	m.Value = value
	m.LastUpdate = time.Now()
}

// RecordTimer records a duration sample for a timer metric
func (r *Registry) RecordTimer(name string, duration time.Duration) {
	ms := float64(duration.Milliseconds())

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.timers[name]
	if t == nil {
		t = &TimerMetric{Min: ms, Max: ms}
		r.timers[name] = t
	}
	t.Count++
	t.Sum += ms
	if ms < t.Min {
		t.Min = ms
	}
	if ms > t.Max {
		t.Max = ms
	}
	t.Average = t.Sum / float64(t.Count)
}

// CounterValue returns the current value of a counter, zero if unknown
func (r *Registry) CounterValue(name string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.counters[name]; ok {
		return m.Value
	}
	return 0
}

// Snapshot is the exported view of all metrics
type Snapshot struct {
	UptimeSeconds float64                `json:"uptime_seconds"`
	Counters      map[string]Metric      `json:"counters"`
	Gauges        map[string]Metric      `json:"gauges"`
	Timers        map[string]TimerMetric `json:"timers"`
}

// Export returns a copy of all metrics in the registry
func (r *Registry) Export() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(r.startTime).Seconds(),
		Counters:      make(map[string]Metric, len(r.counters)),
		Gauges:        make(map[string]Metric, len(r.gauges)),
		Timers:        make(map[string]TimerMetric, len(r.timers)),
	}
	for k, v := range r.counters {
		snap.Counters[k] = *v
	}
	for k, v := range r.gauges {
		snap.Gauges[k] = *v
	}
	for k, v := range r.timers {
		snap.Timers[k] = *v
	}
	return snap
}

// Package-level helpers against the global registry

func IncrementCounter(name, description string) {
	globalRegistry.IncrementCounter(name, description)
}

func SetGauge(name string, value float64, description string) {
	globalRegistry.SetGauge(name, value, description)
}

func RecordTimer(name string, duration time.Duration) {
	globalRegistry.RecordTimer(name, duration)
}

func GetAllMetrics() Snapshot {
	return globalRegistry.Export()
}
