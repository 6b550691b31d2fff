package metrics

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing count.
type Counter struct {
	n atomic.Int64
}

func (c *Counter) Inc(delta int64) { c.n.Add(delta) }

func (c *Counter) Count() int64 { return c.n.Load() }

func (c *Counter) Clear() { c.n.Store(0) }

// Gauge is an instantaneous value.
type Gauge struct {
	v atomic.Int64
}

func (g *Gauge) Update(v int64) { g.v.Store(v) }

// Max raises the gauge to v if v is larger.
func (g *Gauge) Max(v int64) {
	for {
		cur := g.v.Load()
		if v <= cur || g.v.CompareAndSwap(cur, v) {
			return
		}
	}
}

func (g *Gauge) Value() int64 { return g.v.Load() }

// Registry holds named metrics.
type Registry struct {
	mutex   sync.Mutex
	metrics map[string]any
}

func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]any)}
}

func (r *Registry) GetOrRegisterCounter(name string) *Counter {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if m, ok := r.metrics[name]; ok {
		return m.(*Counter)
	}
	c := &Counter{}
	r.metrics[name] = c
	return c
}

func (r *Registry) GetOrRegisterGauge(name string) *Gauge {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if m, ok := r.metrics[name]; ok {
		return m.(*Gauge)
	}
	g := &Gauge{}
	r.metrics[name] = g
	return g
}

// Each visits every registered metric.
func (r *Registry) Each(fn func(name string, metric any)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for name, m := range r.metrics {
		fn(name, m)
	}
}

func (r *Registry) UnregisterAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.metrics = make(map[string]any)
}
