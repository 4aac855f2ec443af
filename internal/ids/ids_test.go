package ids

import (
	"testing"
	"time"
)

func TestNewIsSortableAndUnique(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := NewAt(at)
	seen := map[string]bool{prev: true}
	for i := 0; i < 1000; i++ {
		id := NewAt(at)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		if id <= prev {
			t.Fatalf("NewAt() = %s, not greater than %s", id, prev)
		}
		seen[id] = true
		prev = id
	}
}

func TestValid(t *testing.T) {
	if !Valid(New()) {
		t.Errorf("Valid(New()) = false")
	}
	if Valid("not-an-id") {
		t.Errorf("Valid(not-an-id) = true")
	}
}
