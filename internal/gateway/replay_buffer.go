package gateway

import "sync"

// ReplayBuffer holds the last few tile envelopes so a tile that reconnects
// after a short outage catches up on the partial updates it missed instead
// of receiving the merged state again.
//
// The hub numbers envelopes 1, 2, 3, ... so envelope seq lives in slot
// seq % size and is evicted by seq + size.
type ReplayBuffer struct {
	mu    sync.RWMutex
	slots []replaySlot
}

type replaySlot struct {
	seq int64 // 0 while the slot is unused
	env []byte
}

// NewReplayBuffer creates a buffer for size envelopes (64 when size <= 0).
func NewReplayBuffer(size int) *ReplayBuffer {
	if size <= 0 {
		size = 64
	}
	return &ReplayBuffer{slots: make([]replaySlot, size)}
}

// Push stores a copy of envelope seq.
func (rb *ReplayBuffer) Push(seq int64, env []byte) {
	cp := append([]byte(nil), env...)
	rb.mu.Lock()
	rb.slots[rb.slot(seq)] = replaySlot{seq: seq, env: cp}
	rb.mu.Unlock()
}

// Since returns the envelopes after+1 through upTo, oldest first. ok is
// false when any of them has already been evicted; the caller then has to
// fall back to the full state.
func (rb *ReplayBuffer) Since(after, upTo int64) (envs [][]byte, ok bool) {
	if upTo <= after {
		return nil, true
	}
	if after < 0 || upTo-after > int64(len(rb.slots)) {
		return nil, false
	}

	rb.mu.RLock()
	defer rb.mu.RUnlock()
	envs = make([][]byte, 0, upTo-after)
	for seq := after + 1; seq <= upTo; seq++ {
		s := rb.slots[rb.slot(seq)]
		if s.seq != seq {
			return nil, false
		}
		envs = append(envs, s.env)
	}
	return envs, true
}

// Size returns how many envelopes the buffer can hold.
func (rb *ReplayBuffer) Size() int { return len(rb.slots) }

func (rb *ReplayBuffer) slot(seq int64) int {
	return int(seq % int64(len(rb.slots)))
}
