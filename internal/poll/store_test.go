package poll

import (
	"testing"

	"github.com/nerrad567/domo-bridge/internal/element"
)

// TestStoreReplaceAndGet verifies basic publish and lookup.
func TestStoreReplaceAndGet(t *testing.T) {
	store := NewStore()

	store.ReplaceAll(map[string]element.State{
		"env.light/10": {"is_on": true, "brightness": 80},
	})

	state, ok := store.Get("env.light/10")
	if !ok {
		t.Fatal("expected state for env.light/10")
	}
	if !state.Bool("is_on") {
		t.Error("is_on = false, want true")
	}
	if got, _ := state.Int("brightness"); got != 80 {
		t.Errorf("brightness = %d, want 80", got)
	}

	if _, ok := store.Get("env.light/99"); ok {
		t.Error("expected no state for unknown element")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

// TestStoreGetReturnsCopy verifies reads cannot mutate published state.
func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(map[string]element.State{
		"env.light/10": {"is_on": true},
	})

	state, _ := store.Get("env.light/10")
	state["is_on"] = false

	fresh, _ := store.Get("env.light/10")
	if !fresh.Bool("is_on") {
		t.Error("mutation of a read copy leaked into the store")
	}
}

// TestStoreReplaceAllCopiesInput verifies writers keep no aliases into
// the store.
func TestStoreReplaceAllCopiesInput(t *testing.T) {
	store := NewStore()
	input := map[string]element.State{
		"env.light/10": {"is_on": true},
	}
	store.ReplaceAll(input)

	input["env.light/10"]["is_on"] = false

	state, _ := store.Get("env.light/10")
	if !state.Bool("is_on") {
		t.Error("mutation of the input map leaked into the store")
	}
}

// TestStoreMergeElement verifies fragment overlays.
func TestStoreMergeElement(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(map[string]element.State{
		"env.light/10": {"is_on": false, "brightness": 20},
	})

	merged := store.MergeElement("env.light/10", element.State{"is_on": true})

	if !merged.Bool("is_on") {
		t.Error("merged is_on = false, want true")
	}
	if got, _ := merged.Int("brightness"); got != 20 {
		t.Errorf("merged brightness = %d, want 20 retained", got)
	}

	stored, _ := store.Get("env.light/10")
	if !stored.Bool("is_on") {
		t.Error("merge did not persist into the store")
	}

	// Mutating the returned copy must not touch the store
	merged["is_on"] = false
	stored, _ = store.Get("env.light/10")
	if !stored.Bool("is_on") {
		t.Error("mutation of the merge result leaked into the store")
	}
}

// TestStoreMergeElement_Unpublished verifies merges land before the
// first poll has published the element.
func TestStoreMergeElement_Unpublished(t *testing.T) {
	store := NewStore()

	merged := store.MergeElement("env.light/10", element.State{"is_on": true})
	if !merged.Bool("is_on") {
		t.Error("merge into empty state lost the fragment")
	}
	if _, ok := store.Get("env.light/10"); !ok {
		t.Error("merged element missing from store")
	}
}

// TestStoreStaleLifecycle verifies the stale flag follows cycle
// outcomes.
func TestStoreStaleLifecycle(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(map[string]element.State{
		"env.light/10": {"is_on": true},
	})

	if store.Stale() {
		t.Error("fresh store should not be stale")
	}

	store.MarkStale()
	if !store.Stale() {
		t.Error("MarkStale did not take effect")
	}
	if _, ok := store.Get("env.light/10"); !ok {
		t.Error("stale store should retain states")
	}

	store.ReplaceAll(map[string]element.State{
		"env.light/10": {"is_on": false},
	})
	if store.Stale() {
		t.Error("successful replace should clear the stale flag")
	}
}

// TestStoreAll verifies the full-map copy.
func TestStoreAll(t *testing.T) {
	store := NewStore()
	store.ReplaceAll(map[string]element.State{
		"a": {"v": 1},
		"b": {"v": 2},
	})

	all := store.All()
	if len(all) != 2 {
		t.Fatalf("All() size = %d, want 2", len(all))
	}

	all["a"]["v"] = 99
	state, _ := store.Get("a")
	if got, _ := state.Int("v"); got != 1 {
		t.Error("mutation of All() result leaked into the store")
	}
}
