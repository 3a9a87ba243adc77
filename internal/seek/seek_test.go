package seek

import "testing"

func TestPollEmpty(t *testing.T) {
	var s Slot
	if _, ok := s.Poll(); ok {
		t.Fatal("poll on empty slot reported a pending request")
	}
}

func TestRequestThenPoll(t *testing.T) {
	var s Slot
	s.Request(1000)
	ts, ok := s.Poll()
	if !ok || ts != 1000 {
		t.Fatalf("poll = %d, %v, want 1000, true", ts, ok)
	}
	if _, ok := s.Poll(); ok {
		t.Fatal("poll did not clear the slot")
	}
}

func TestCoalescesMultipleRequests(t *testing.T) {
	var s Slot
	s.Request(1000)
	s.Request(2000)
	s.Request(3000)

	ts, ok := s.Poll()
	if !ok || ts != 3000 {
		t.Fatalf("poll = %d, %v, want 3000, true (last write wins)", ts, ok)
	}
	if _, ok := s.Poll(); ok {
		t.Fatal("poll should report only one coalesced request")
	}
}
