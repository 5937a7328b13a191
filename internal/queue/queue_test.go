package queue

import (
	"math/rand"
	"testing"
)

func fivePaths() []string {
	return []string{"/path/1.mp3", "/path/2.mp3", "/path/3.mp3", "/path/4.mp3", "/path/5.mp3"}
}

func TestNewManager(t *testing.T) {
	m := NewManager()

	if m == nil {
		t.Fatal("NewManager returned nil")
	}

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1, got %d", idx)
	}
	if size != 0 {
		t.Errorf("Expected size 0, got %d", size)
	}
	if _, _, ok := m.Current(); ok {
		t.Error("Expected no current entry on empty queue")
	}
}

func TestSetStartIndex(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		start int
		want  int
	}{
		{"valid start", fivePaths(), 2, 2},
		{"first", fivePaths(), 0, 0},
		{"negative start", fivePaths(), -1, 0},
		{"start past end", fivePaths(), 5, 0},
		{"empty list", nil, 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.Set(tt.paths, tt.start)

			idx, size := m.Position()
			if idx != tt.want {
				t.Errorf("Expected index %d, got %d", tt.want, idx)
			}
			if size != len(tt.paths) {
				t.Errorf("Expected size %d, got %d", len(tt.paths), size)
			}
		})
	}
}

func TestSetCopiesInput(t *testing.T) {
	m := NewManager()
	paths := fivePaths()
	m.Set(paths, 0)
	paths[0] = "/changed.mp3"

	path, _, _ := m.Current()
	if path != "/path/1.mp3" {
		t.Errorf("Expected queue to keep its own copy, got %s", path)
	}
}

func TestAdd(t *testing.T) {
	m := NewManager()

	added := m.Add("/path/1.mp3", "/path/2.mp3", "/path/1.mp3", "")
	if added != 2 {
		t.Errorf("Expected 2 added, got %d", added)
	}

	idx, size := m.Position()
	if idx != 0 {
		t.Errorf("Expected first add to select index 0, got %d", idx)
	}
	if size != 2 {
		t.Errorf("Expected size 2, got %d", size)
	}

	added = m.Add("/path/2.mp3", "/path/3.mp3")
	if added != 1 {
		t.Errorf("Expected already-queued path to be skipped, added %d", added)
	}
	if idx, _ := m.Position(); idx != 0 {
		t.Errorf("Expected index to stay 0, got %d", idx)
	}
}

func TestNextWraps(t *testing.T) {
	m := NewManager()
	m.Set(fivePaths(), 4)

	if !m.Next() {
		t.Fatal("Expected Next to succeed")
	}
	if idx, _ := m.Position(); idx != 0 {
		t.Errorf("Expected next from 4 of 5 to wrap to 0, got %d", idx)
	}
}

func TestPrevWraps(t *testing.T) {
	m := NewManager()
	m.Set(fivePaths(), 0)

	if !m.Prev() {
		t.Fatal("Expected Prev to succeed")
	}
	if idx, _ := m.Position(); idx != 4 {
		t.Errorf("Expected prev from 0 of 5 to wrap to 4, got %d", idx)
	}

	m.Prev()
	if idx, _ := m.Position(); idx != 3 {
		t.Errorf("Expected index 3, got %d", idx)
	}
}

func TestNavigationOnEmptyQueue(t *testing.T) {
	m := NewManager()

	if m.Next() {
		t.Error("Expected Next on empty queue to report false")
	}
	if m.Prev() {
		t.Error("Expected Prev on empty queue to report false")
	}
	if idx, _ := m.Position(); idx != -1 {
		t.Errorf("Expected index -1, got %d", idx)
	}
}

func TestShuffleDrawsInRange(t *testing.T) {
	m := NewManagerWithRand(rand.New(rand.NewSource(1)))
	m.Set(fivePaths(), 0)
	m.SetShuffle(true)

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		m.Next()
		idx, size := m.Position()
		if idx < 0 || idx >= size {
			t.Fatalf("Shuffle picked out-of-range index %d of %d", idx, size)
		}
		seen[idx] = true
	}
	if len(seen) < 2 {
		t.Errorf("Expected shuffle to visit several entries, saw %v", seen)
	}
}

func TestShuffleSingleTrack(t *testing.T) {
	m := NewManager()
	m.Set([]string{"/only.mp3"}, 0)
	m.SetShuffle(true)

	for i := 0; i < 5; i++ {
		m.Next()
		if idx, _ := m.Position(); idx != 0 {
			t.Fatalf("Expected single-track shuffle to stay at 0, got %d", idx)
		}
	}
}

func TestAdvance(t *testing.T) {
	m := NewManager()
	m.Set(fivePaths(), 1)

	_, version, _ := m.Current()
	if !m.Advance(version) {
		t.Fatal("Expected Advance with current version to succeed")
	}
	if idx, _ := m.Position(); idx != 2 {
		t.Errorf("Expected index 2, got %d", idx)
	}
}

func TestAdvanceRepeat(t *testing.T) {
	m := NewManager()
	m.Set(fivePaths(), 1)
	m.SetRepeat(true)

	_, version, _ := m.Current()
	if !m.Advance(version) {
		t.Fatal("Expected Advance to succeed")
	}
	if idx, _ := m.Position(); idx != 1 {
		t.Errorf("Expected repeat to keep index 1, got %d", idx)
	}

	// Skip ignores repeat.
	_, version, _ = m.Current()
	m.Skip(version)
	if idx, _ := m.Position(); idx != 2 {
		t.Errorf("Expected Skip to move to 2, got %d", idx)
	}
}

func TestAdvanceStaleVersion(t *testing.T) {
	m := NewManager()
	m.Set(fivePaths(), 0)

	_, version, _ := m.Current()
	m.SetIndex(3)

	if m.Advance(version) {
		t.Error("Expected Advance with stale version to be rejected")
	}
	if idx, _ := m.Position(); idx != 3 {
		t.Errorf("Expected user selection 3 to survive, got %d", idx)
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		remove      int
		wantOK      bool
		wantCurrent bool
		wantIndex   int
	}{
		{"before current", 2, 0, true, false, 1},
		{"after current", 2, 4, true, false, 2},
		{"current", 2, 2, true, true, 2},
		{"current at end", 4, 4, true, true, 0},
		{"out of range", 2, 7, false, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.Set(fivePaths(), tt.current)
			before, _, _ := m.Current()

			ok, wasCurrent := m.Remove(tt.remove)
			if ok != tt.wantOK || wasCurrent != tt.wantCurrent {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tt.wantOK, tt.wantCurrent, ok, wasCurrent)
			}
			if idx, _ := m.Position(); idx != tt.wantIndex {
				t.Errorf("Expected index %d, got %d", tt.wantIndex, idx)
			}
			if !tt.wantCurrent {
				if after, _, _ := m.Current(); after != before {
					t.Errorf("Expected current entry %s to survive, got %s", before, after)
				}
			}
		})
	}
}

func TestRemoveLast(t *testing.T) {
	m := NewManager()
	m.Set([]string{"/only.mp3"}, 0)

	m.Remove(0)
	if idx, size := m.Position(); idx != -1 || size != 0 {
		t.Errorf("Expected empty queue, got index %d size %d", idx, size)
	}
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Set(fivePaths(), 2)
	m.Clear()

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1 after Clear, got %d", idx)
	}
	if size != 0 {
		t.Errorf("Expected size 0 after Clear, got %d", size)
	}
}

func TestOnChange(t *testing.T) {
	m := NewManager()
	calls := 0
	m.SetOnChange(func() { calls++ })

	m.Set(fivePaths(), 0)
	m.Next()
	m.Prev()
	m.Add("/path/1.mp3")

	if calls != 3 {
		t.Errorf("Expected 3 change notifications, got %d", calls)
	}
}
