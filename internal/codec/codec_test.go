package codec

import (
	"context"
	"errors"
	"testing"

	"ai4free/internal/kvstore"
	"ai4free/internal/metrics"
)

type item struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

func defaultItems() []item {
	return []item{{ID: "seed", Order: 1}}
}

func TestCodecRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	c := New(store, "items", defaultItems, metrics.NewCollector())

	want := []item{{ID: "a", Order: 2}, {ID: "b", Order: 1}}
	if err := c.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := c.Read(ctx)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestCodecAbsentKeyReturnsDefault(t *testing.T) {
	c := New(kvstore.NewMemoryStore(0), "items", defaultItems, nil)
	got := c.Read(context.Background())
	if len(got) != 1 || got[0].ID != "seed" {
		t.Fatalf("expected default, got %+v", got)
	}
}

func TestCodecCorruptTextFallsBackAndKeepsRaw(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	collector := metrics.NewCollector()
	_ = store.Set(ctx, "items", "{broken")
	c := New(store, "items", defaultItems, collector)

	got := c.Read(ctx)
	if len(got) != 1 || got[0].ID != "seed" {
		t.Fatalf("expected default on corrupt text, got %+v", got)
	}
	raw, _, _ := store.Get(ctx, "items")
	if raw != "{broken" {
		t.Fatalf("corrupt raw text must stay in place, got %q", raw)
	}
	_, fallbacks, _, _ := collector.StoreTotals()
	if fallbacks != 1 {
		t.Fatalf("expected one decode fallback, got %d", fallbacks)
	}

	if err := c.Write(ctx, []item{{ID: "x"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := c.Read(ctx); len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("expected next write to replace corrupt text, got %+v", got)
	}
}

func TestCodecWrongShapeFallsBack(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	_ = store.Set(ctx, "items", `{"id":"not-an-array"}`)
	c := New(store, "items", defaultItems, nil)
	if got := c.Read(ctx); len(got) != 1 || got[0].ID != "seed" {
		t.Fatalf("expected default on shape mismatch, got %+v", got)
	}
}

func TestCodecWriteFailureReturnsError(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(16)
	collector := metrics.NewCollector()
	c := New(store, "items", defaultItems, collector)

	err := c.Write(ctx, []item{{ID: "a-very-long-identifier", Order: 1}})
	if !errors.Is(err, kvstore.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	_, _, _, failures := collector.StoreTotals()
	if failures != 1 {
		t.Fatalf("expected one write failure, got %d", failures)
	}
	if got := c.Read(ctx); got[0].ID != "seed" {
		t.Fatalf("failed write must not change persisted state, got %+v", got)
	}
}

func TestCodecReadIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	c := New(kvstore.NewMemoryStore(0), "items", defaultItems, nil)
	_ = c.Write(ctx, []item{{ID: "a", Order: 1}})

	first := c.Read(ctx)
	first[0].ID = "mutated"
	_ = c.Write(ctx, []item{{ID: "b", Order: 1}})
	second := c.Read(ctx)
	if second[0].ID != "b" {
		t.Fatalf("expected fresh read, got %+v", second)
	}
	if first[0].ID != "mutated" {
		t.Fatalf("earlier read must not be changed by later write, got %+v", first)
	}
}

func TestCodecReset(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore(0)
	c := New(store, "items", defaultItems, nil)
	_ = c.Write(ctx, []item{})
	if got := c.Read(ctx); len(got) != 0 {
		t.Fatalf("expected persisted empty collection, got %+v", got)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "items"); ok {
		t.Fatal("expected key removed")
	}
	if got := c.Read(ctx); len(got) != 1 {
		t.Fatalf("expected defaults after reset, got %+v", got)
	}
}
