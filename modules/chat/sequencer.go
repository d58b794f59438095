package chat

import (
	"sync"
	"time"
)

// timestampResolution is the precision every supported database keeps.
const timestampResolution = time.Millisecond

// Sequencer serializes writes per chat. Each chat has its own slot holding
// a mutex and the position of the chat's newest stored message; there is no
// lock shared between chats.
type Sequencer struct {
	slots sync.Map // chatID -> *Slot
	now   func() time.Time
}

// Slot is the per-chat write position. It is only used while locked.
type Slot struct {
	mu     sync.Mutex
	loaded bool
	seq    int64
	ts     time.Time
	now    func() time.Time
}

// NewSequencer creates a sequencer using now as the clock.
func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{now: now}
}

// Lock acquires the slot for chatID. The caller must Unlock it.
func (s *Sequencer) Lock(chatID string) *Slot {
	v, ok := s.slots.Load(chatID)
	if !ok {
		v, _ = s.slots.LoadOrStore(chatID, &Slot{now: s.now})
	}
	slot := v.(*Slot)
	slot.mu.Lock()
	return slot
}

// Unlock releases the slot.
func (sl *Slot) Unlock() {
	sl.mu.Unlock()
}

// Loaded reports whether the slot knows the chat's current position.
func (sl *Slot) Loaded() bool {
	return sl.loaded
}

// Load sets the chat's current position from storage.
func (sl *Slot) Load(seq int64, ts time.Time) {
	sl.seq = seq
	sl.ts = ts
	sl.loaded = true
}

// Invalidate forces the next writer to reload the position from storage.
func (sl *Slot) Invalidate() {
	sl.loaded = false
}

// Next returns the position for a new message: the following sequence
// number and a timestamp strictly after the current one.
func (sl *Slot) Next() (int64, time.Time) {
	ts := sl.now().UTC().Truncate(timestampResolution)
	if !ts.After(sl.ts) {
		ts = sl.ts.Add(timestampResolution)
	}
	return sl.seq + 1, ts
}

// Commit records a stored message as the chat's newest.
func (sl *Slot) Commit(seq int64, ts time.Time) {
	sl.seq = seq
	sl.ts = ts
	sl.loaded = true
}

