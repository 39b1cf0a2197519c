package metrics

import (
	"sync"
	"time"
)

// Recorder is an in-memory statsd.Sink for tests.
type Recorder struct {
	mu      sync.Mutex
	Counts  map[string]int64
	Gauges  map[string]float64
	Timings map[string][]time.Duration
	Tags    map[string][]map[string]string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Counts:  make(map[string]int64),
		Gauges:  make(map[string]float64),
		Timings: make(map[string][]time.Duration),
		Tags:    make(map[string][]map[string]string),
	}
}

// Count implements statsd.Sink.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[name] += value
	r.Tags[name] = append(r.Tags[name], CloneTags(tags))
}

// Gauge implements statsd.Sink.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gauges[name] = value
	r.Tags[name] = append(r.Tags[name], CloneTags(tags))
}

// Timing implements statsd.Sink.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Timings[name] = append(r.Timings[name], value)
	r.Tags[name] = append(r.Tags[name], CloneTags(tags))
}

// CountOf returns the accumulated counter value for name.
func (r *Recorder) CountOf(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[name]
}

// TagsOf returns a copy of every tag set recorded under name.
func (r *Recorder) TagsOf(name string) []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]string, len(r.Tags[name]))
	copy(out, r.Tags[name])
	return out
}
