package index

import (
	"context"
	"testing"
)

func TestMemoryLookupRanking(t *testing.T) {
	m := NewMemory()
	m.Seed(CollectionZones,
		Record{ID: "eu", Attributes: map[string]any{"rank": "first"}},
		Record{ID: "eu", Attributes: map[string]any{"rank": "second"}},
	)

	recs, err := m.Lookup(context.Background(), CollectionZones, "eu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].Attributes["rank"] != "first" {
		t.Fatalf("unexpected ranking: %+v", recs)
	}
}

func TestMemoryLookupNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.Lookup(context.Background(), CollectionInstances, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	m.Seed(CollectionZones, Record{ID: "z", Attributes: map[string]any{"k": "v"}})
	recs, _ := m.Lookup(context.Background(), CollectionZones, "z")
	recs[0].Attributes["k"] = "mutated"

	again, _ := m.Lookup(context.Background(), CollectionZones, "z")
	if again[0].Attributes["k"] != "v" {
		t.Fatal("lookup must not expose internal state")
	}
	if m.Count(CollectionZones) != 1 {
		t.Fatalf("count = %d", m.Count(CollectionZones))
	}
}

func TestMemoryEventsAreBounded(t *testing.T) {
	m := NewMemory()
	m.Limit(CollectionEvents, 3)
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		if err := m.Index(context.Background(), CollectionEvents, Record{ID: id}); err != nil {
			t.Fatalf("index %s: %v", id, err)
		}
	}
	if n := m.Count(CollectionEvents); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if _, err := m.Lookup(context.Background(), CollectionEvents, "e1"); err != ErrNotFound {
		t.Fatalf("oldest event must be evicted, got %v", err)
	}
	if _, err := m.Lookup(context.Background(), CollectionEvents, "e5"); err != nil {
		t.Fatalf("newest event must survive: %v", err)
	}
}

func TestMemoryDefaultEventsCap(t *testing.T) {
	m := NewMemory()
	for i := 0; i < DefaultEventsCap+50; i++ {
		_ = m.Index(context.Background(), CollectionEvents, Record{ID: "same"})
	}
	if n := m.Count(CollectionEvents); n != DefaultEventsCap {
		t.Fatalf("count = %d, want %d", n, DefaultEventsCap)
	}
}

func TestMemoryReplicasUpsertByID(t *testing.T) {
	m := NewMemory()
	m.Seed(CollectionReplicas,
		Record{ID: "m/mp4/720p", Attributes: map[string]any{"digest": "old"}},
		Record{ID: "m/mp4/720p", Attributes: map[string]any{"digest": "new"}},
	)
	recs, err := m.Lookup(context.Background(), CollectionReplicas, "m/mp4/720p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Attributes["digest"] != "new" {
		t.Fatalf("replica must be replaced, got %+v", recs)
	}
	if m.Count(CollectionReplicas) != 1 {
		t.Fatalf("count = %d", m.Count(CollectionReplicas))
	}
}
