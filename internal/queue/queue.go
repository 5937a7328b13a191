// Package queue manages the playlist and the cursor into it.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ChangeCallback is called when the queue state changes
type ChangeCallback func()

// Manager manages the playlist. Every cursor move bumps a version so a
// reader can detect that the entry it is working on was superseded.
type Manager struct {
	mu       sync.RWMutex
	items    []string
	index    int // -1 when empty
	version  uint64
	shuffle  bool
	repeat   bool
	rng      *rand.Rand
	onChange ChangeCallback
}

// NewManager creates a new queue manager
func NewManager() *Manager {
	return NewManagerWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewManagerWithRand creates a manager drawing shuffle picks from rng.
func NewManagerWithRand(rng *rand.Rand) *Manager {
	return &Manager{
		items: make([]string, 0),
		index: -1,
		rng:   rng,
	}
}

// SetOnChange sets a callback to be called when the queue state changes
func (m *Manager) SetOnChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// notifyChange calls the onChange callback if set (must be called without lock held)
func (m *Manager) notifyChange() {
	m.mu.RLock()
	callback := m.onChange
	m.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// moveLocked points the cursor at index and bumps the version.
func (m *Manager) moveLocked(index int) {
	m.index = index
	m.version++
}

// Set replaces the playlist. An out-of-range start selects the first
// entry; an empty list leaves no current entry.
func (m *Manager) Set(paths []string, start int) {
	m.mu.Lock()

	m.items = make([]string, len(paths))
	copy(m.items, paths)

	switch {
	case len(m.items) == 0:
		m.moveLocked(-1)
	case start < 0 || start >= len(m.items):
		m.moveLocked(0)
	default:
		m.moveLocked(start)
	}

	m.mu.Unlock()
	m.notifyChange()
}

// Add appends paths that are not already queued and returns how many were
// added. Adding to an empty queue selects the first new entry.
func (m *Manager) Add(paths ...string) int {
	m.mu.Lock()

	existing := lo.SliceToMap(m.items, func(p string) (string, struct{}) {
		return p, struct{}{}
	})
	fresh := lo.Filter(lo.Uniq(paths), func(p string, _ int) bool {
		_, ok := existing[p]
		return p != "" && !ok
	})

	wasEmpty := len(m.items) == 0
	m.items = append(m.items, fresh...)
	if wasEmpty && len(fresh) > 0 {
		m.moveLocked(0)
	}

	m.mu.Unlock()
	if len(fresh) > 0 {
		m.notifyChange()
	}
	return len(fresh)
}

// Remove deletes the entry at index. It reports whether index was valid and
// whether the removed entry was the current one.
func (m *Manager) Remove(index int) (ok, wasCurrent bool) {
	m.mu.Lock()

	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false, false
	}

	m.items = append(m.items[:index], m.items[index+1:]...)
	wasCurrent = index == m.index
	switch {
	case len(m.items) == 0:
		m.moveLocked(-1)
	case wasCurrent:
		m.moveLocked(m.index % len(m.items))
	case index < m.index:
		// Same entry, shifted down; not a track change.
		m.index--
	}

	m.mu.Unlock()
	m.notifyChange()
	return true, wasCurrent
}

// Clear clears the queue
func (m *Manager) Clear() {
	m.mu.Lock()
	m.items = make([]string, 0)
	m.moveLocked(-1)
	m.mu.Unlock()
	m.notifyChange()
}

// nextIndexLocked picks the entry after the current one: a uniform draw
// when shuffling, otherwise the following entry wrapping to the start.
func (m *Manager) nextIndexLocked() int {
	n := len(m.items)
	if m.shuffle {
		if n == 1 {
			return 0
		}
		return m.rng.Intn(n)
	}
	return (m.index + 1) % n
}

// Next moves to the next entry. It reports false on an empty queue.
func (m *Manager) Next() bool {
	m.mu.Lock()
	if len(m.items) == 0 {
		m.mu.Unlock()
		return false
	}
	m.moveLocked(m.nextIndexLocked())
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Prev moves to the previous entry, wrapping to the end. It reports false
// on an empty queue.
func (m *Manager) Prev() bool {
	m.mu.Lock()
	n := len(m.items)
	if n == 0 {
		m.mu.Unlock()
		return false
	}
	m.moveLocked((m.index - 1 + n) % n)
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Advance applies end-of-track progression for the entry read at version:
// with repeat on the cursor stays put, otherwise it moves as Next does. It
// does nothing and returns false if the cursor moved since version.
func (m *Manager) Advance(version uint64) bool {
	m.mu.Lock()
	if version != m.version || len(m.items) == 0 {
		m.mu.Unlock()
		return false
	}
	if m.repeat {
		m.mu.Unlock()
		return true
	}
	m.moveLocked(m.nextIndexLocked())
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Skip moves past an entry that could not be played, ignoring repeat. Like
// Advance it does nothing if the cursor moved since version.
func (m *Manager) Skip(version uint64) bool {
	m.mu.Lock()
	if version != m.version || len(m.items) == 0 {
		m.mu.Unlock()
		return false
	}
	m.moveLocked(m.nextIndexLocked())
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Current returns the current entry and the version it was read at.
func (m *Manager) Current() (path string, version uint64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.index < 0 || m.index >= len(m.items) {
		return "", m.version, false
	}
	return m.items[m.index], m.version, true
}

// SetIndex sets the current position
func (m *Manager) SetIndex(index int) bool {
	m.mu.Lock()
	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false
	}
	m.moveLocked(index)
	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Position returns the current index and queue size
func (m *Manager) Position() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index, len(m.items)
}

// Items returns a copy of the queued paths
func (m *Manager) Items() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]string, len(m.items))
	copy(items, m.items)
	return items
}

// SetShuffle enables or disables shuffle
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()
	m.shuffle = enabled
	m.mu.Unlock()
	m.notifyChange()
}

// Shuffle returns whether shuffle is enabled
func (m *Manager) Shuffle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shuffle
}

// SetRepeat enables or disables repeating the current entry
func (m *Manager) SetRepeat(enabled bool) {
	m.mu.Lock()
	m.repeat = enabled
	m.mu.Unlock()
	m.notifyChange()
}

// Repeat returns whether repeat is enabled
func (m *Manager) Repeat() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.repeat
}
