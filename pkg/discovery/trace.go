package discovery

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventCacheHit        TraceEventKind = "cache_hit"
	TraceEventCacheMiss       TraceEventKind = "cache_miss"
	TraceEventCandidates      TraceEventKind = "candidates"
	TraceEventClassifierCall  TraceEventKind = "classifier_call"
	TraceEventBatchFailed     TraceEventKind = "batch_failed"
	TraceEventEdgeDropped     TraceEventKind = "edge_dropped"
	TraceEventEarlyStop       TraceEventKind = "early_stop"
	TraceEventRelationshipsOK TraceEventKind = "relationships"
)

// TraceEvent is an extensible event envelope for discovery tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	SourceID     string
	CandidateIDs []string
	TargetID     string
	Count        int
	DurationMs   int64
	Reason       string
	Error        string
}

// Tracer is a sink for discovery events.
//
// Implementers can forward events to logs, telemetry, or test assertions.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fans out trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func record(t Tracer, event TraceEvent) {
	if t == nil {
		return
	}
	t.Record(event)
}

// Trace aggregates discovery events into counters. It is safe for
// concurrent use.
type Trace struct {
	mu sync.Mutex

	cacheHits       int
	cacheMisses     int
	classifierCalls int
	failedBatches   int
	earlyStops      int
	dropReasons     map[string]int
	considered      map[string]struct{}
}

type TraceSnapshot struct {
	CacheHits       int            `json:"cache_hits"`
	CacheMisses     int            `json:"cache_misses"`
	ClassifierCalls int            `json:"classifier_calls"`
	FailedBatches   int            `json:"failed_batches"`
	EarlyStops      int            `json:"early_stops"`
	DroppedEdges    map[string]int `json:"dropped_edges"`
	ConsideredIDs   []string       `json:"considered_ids"`
}

func NewTrace() *Trace {
	return &Trace{
		dropReasons: make(map[string]int),
		considered:  make(map[string]struct{}),
	}
}

func (t *Trace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventCacheHit:
		t.cacheHits++
	case TraceEventCacheMiss:
		t.cacheMisses++
	case TraceEventClassifierCall:
		t.classifierCalls++
		for _, id := range event.CandidateIDs {
			if id == "" {
				continue
			}
			t.considered[id] = struct{}{}
		}
	case TraceEventBatchFailed:
		t.failedBatches++
	case TraceEventEdgeDropped:
		t.dropReasons[event.Reason]++
	case TraceEventEarlyStop:
		t.earlyStops++
	default:
		return
	}
}

func (t *Trace) Snapshot() TraceSnapshot {
	if t == nil {
		return TraceSnapshot{DroppedEdges: map[string]int{}, ConsideredIDs: []string{}}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := TraceSnapshot{
		CacheHits:       t.cacheHits,
		CacheMisses:     t.cacheMisses,
		ClassifierCalls: t.classifierCalls,
		FailedBatches:   t.failedBatches,
		EarlyStops:      t.earlyStops,
		DroppedEdges:    make(map[string]int, len(t.dropReasons)),
		ConsideredIDs:   make([]string, 0, len(t.considered)),
	}
	for reason, n := range t.dropReasons {
		s.DroppedEdges[reason] = n
	}
	for id := range t.considered {
		s.ConsideredIDs = append(s.ConsideredIDs, id)
	}
	sort.Strings(s.ConsideredIDs)

	return s
}
