package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// ExpvarMetricsRecorder publishes per-operation call counts and cumulative
// latency under one expvar map.
//
// Published layout:
//
//	<name>.calls   map "<operation>.success" / "<operation>.error" -> count
//	<name>.latency map "<operation>" -> total milliseconds
type ExpvarMetricsRecorder struct {
	name    string
	root    *expvar.Map
	calls   *expvar.Map
	latency *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty. expvar names are process-global,
// so reusing a name panics.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("clinicrecords_service_%d", expvarSeq.Add(1))
	}
	rec := &ExpvarMetricsRecorder{
		name:    name,
		root:    expvar.NewMap(name),
		calls:   new(expvar.Map).Init(),
		latency: new(expvar.Map).Init(),
	}
	rec.root.Set("calls", rec.calls)
	rec.root.Set("latency", rec.latency)
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe counts the call and adds its latency.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.calls.Add(operation+"."+status, 1)
	r.latency.AddFloat(operation, float64(duration)/float64(time.Millisecond))
}

// Calls returns the recorded count for operation and outcome.
func (r *ExpvarMetricsRecorder) Calls(operation string, success bool) int64 {
	status := "error"
	if success {
		status = "success"
	}
	if v, ok := r.calls.Get(operation + "." + status).(*expvar.Int); ok {
		return v.Value()
	}
	return 0
}

// LatencyMS returns the cumulative latency for operation in milliseconds.
func (r *ExpvarMetricsRecorder) LatencyMS(operation string) float64 {
	if v, ok := r.latency.Get(operation).(*expvar.Float); ok {
		return v.Value()
	}
	return 0
}

// TraceEntry is one finished span as written by JSONTracer.
type TraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes each finished span as one JSON line and keeps a copy.
type JSONTracer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	entries []TraceEntry
	now     func() time.Time
}

// NewJSONTracer returns a tracer writing to w. A nil w only retains spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the finished spans in completion order.
func (t *JSONTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: t.now()}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	started   time.Time
	ended     atomic.Bool
}

func (s *jsonSpan) End(err error) {
	if s.ended.Swap(true) {
		return
	}
	ended := s.tracer.now()
	entry := TraceEntry{
		Operation:  s.operation,
		Status:     string(AuditStatusSuccess),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = string(AuditStatusError)
		entry.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
