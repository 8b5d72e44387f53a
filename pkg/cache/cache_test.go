package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/OFFIS-RIT/ripple/pkg/common"

	"github.com/google/go-cmp/cmp"
)

func sampleRels() []common.Relationship {
	return []common.Relationship{
		{SourceID: "a", TargetID: "b", Type: common.ImpactsFinance, Confidence: 0.92, ImpactLevel: common.Primary},
		{SourceID: "a", TargetID: "c", Type: common.Causes, Confidence: 0.7, ImpactLevel: common.Secondary},
	}
}

func TestKeyString(t *testing.T) {
	if got := (Key{SourceID: "42", Max: 20}).String(); got != "relationships_42_20" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestMemory_HitAndExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	key := Key{SourceID: "a", Max: 20}

	if _, ok, _ := m.Get(ctx, key); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := m.Set(ctx, key, sampleRels()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := m.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(sampleRels(), got); diff != "" {
		t.Fatalf("cached value mismatch (-want +got):\n%s", diff)
	}

	if _, ok, _ := m.Get(ctx, Key{SourceID: "a", Max: 10}); ok {
		t.Fatalf("different max must be a different key")
	}

	now = now.Add(time.Hour)
	if _, ok, _ := m.Get(ctx, key); ok {
		t.Fatalf("expected entry to expire at ttl")
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry not removed")
	}
}

func TestMemory_ReturnsCopy(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()
	key := Key{SourceID: "a", Max: 5}
	_ = m.Set(ctx, key, sampleRels())

	got, _, _ := m.Get(ctx, key)
	got[0].Confidence = 0

	again, _, _ := m.Get(ctx, key)
	if again[0].Confidence != 0.92 {
		t.Fatalf("cache entry mutated through returned slice")
	}
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemory(time.Hour, WithCapacity(2))
	ctx := context.Background()
	a, b, c := Key{"a", 1}, Key{"b", 1}, Key{"c", 1}

	_ = m.Set(ctx, a, nil)
	_ = m.Set(ctx, b, nil)
	_, _, _ = m.Get(ctx, a)
	_ = m.Set(ctx, c, nil)

	if _, ok, _ := m.Get(ctx, b); ok {
		t.Fatalf("expected b to be evicted")
	}
	if _, ok, _ := m.Get(ctx, a); !ok {
		t.Fatalf("expected a to survive")
	}
}

func TestMemory_ConcurrentWriters(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()
	key := Key{SourceID: "a", Max: 20}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, key, sampleRels())
			_, _, _ = m.Get(ctx, key)
		}()
	}
	wg.Wait()
	if m.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", m.Len())
	}
}

func TestBadger_RoundTrip(t *testing.T) {
	b, err := NewBadger("", time.Hour)
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	defer b.Close()
	ctx := context.Background()
	key := Key{SourceID: "a", Max: 20}

	if _, ok, err := b.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := b.Set(ctx, key, sampleRels()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(sampleRels(), got); diff != "" {
		t.Fatalf("cached value mismatch (-want +got):\n%s", diff)
	}

	empty := Key{SourceID: "z", Max: 20}
	_ = b.Set(ctx, empty, nil)
	got, ok, _ = b.Get(ctx, empty)
	if !ok || got == nil || len(got) != 0 {
		t.Fatalf("expected cached empty result, got ok=%v %#v", ok, got)
	}
}
