package gateway

import "testing"

func pushN(rb *ReplayBuffer, n int) {
	for i := int64(1); i <= int64(n); i++ {
		rb.Push(i, []byte{byte('a' + i - 1)})
	}
}

func TestReplayBuffer_Since(t *testing.T) {
	rb := NewReplayBuffer(16)
	pushN(rb, 10)

	envs, ok := rb.Since(2, 7)
	if !ok {
		t.Fatal("Since(2,7): range should be fully buffered")
	}
	if len(envs) != 5 {
		t.Fatalf("Since(2,7): got %d envelopes, want 5", len(envs))
	}
	if string(envs[0]) != "c" || string(envs[4]) != "g" {
		t.Errorf("Since(2,7): got %q..%q, want c..g", envs[0], envs[4])
	}
}

func TestReplayBuffer_EvictedRange(t *testing.T) {
	rb := NewReplayBuffer(4)
	pushN(rb, 9) // holds 6..9

	if _, ok := rb.Since(4, 9); ok {
		t.Error("Since(4,9): envelope 5 was evicted, want ok=false")
	}
	envs, ok := rb.Since(5, 9)
	if !ok || len(envs) != 4 {
		t.Fatalf("Since(5,9): got %d envelopes (ok=%v), want 4", len(envs), ok)
	}
	if string(envs[0]) != "f" || string(envs[3]) != "i" {
		t.Errorf("Since(5,9): got %q..%q, want f..i", envs[0], envs[3])
	}
}

func TestReplayBuffer_NotYetPushed(t *testing.T) {
	rb := NewReplayBuffer(8)
	pushN(rb, 3)

	if _, ok := rb.Since(2, 5); ok {
		t.Error("Since(2,5): envelopes 4 and 5 were never pushed, want ok=false")
	}
	envs, ok := rb.Since(3, 3)
	if !ok || len(envs) != 0 {
		t.Errorf("Since(3,3): got %d envelopes (ok=%v), want none", len(envs), ok)
	}
}

func TestReplayBuffer_CopiesData(t *testing.T) {
	rb := NewReplayBuffer(2)
	data := []byte("abc")
	rb.Push(1, data)
	data[0] = 'x'

	envs, _ := rb.Since(0, 1)
	if got := string(envs[0]); got != "abc" {
		t.Errorf("buffer aliased caller slice: got %q", got)
	}
}

func TestReplayBuffer_DefaultSize(t *testing.T) {
	if got := NewReplayBuffer(0).Size(); got != 64 {
		t.Errorf("Size() = %d, want 64", got)
	}
}
