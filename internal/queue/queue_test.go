package queue

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSendRecvFIFO(t *testing.T) {
	q := New[int](2, nil)
	if err := q.Send(1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := q.Send(2); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("len = %d, want 2", got)
	}

	v, err := q.Recv()
	if err != nil || v != 1 {
		t.Fatalf("recv = %d, %v, want 1, nil", v, err)
	}
	v, err = q.Recv()
	if err != nil || v != 2 {
		t.Fatalf("recv = %d, %v, want 2, nil", v, err)
	}
}

func TestSendBlocksUntilSpace(t *testing.T) {
	q := New[int](1, nil)
	if err := q.Send(1); err != nil {
		t.Fatalf("send: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = q.Send(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("send completed before space was freed")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := q.Recv(); err != nil {
		t.Fatalf("recv: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked send never completed after space freed")
	}
}

func TestSetErrSendRejectsImmediately(t *testing.T) {
	q := New[int](1, nil)
	sentinel := errors.New("boom")
	q.SetErrSend(sentinel)

	if err := q.Send(1); !errors.Is(err, sentinel) {
		t.Fatalf("send after poison-send = %v, want %v", err, sentinel)
	}
}

func TestSetErrRecvDrainsThenFails(t *testing.T) {
	q := New[int](4, nil)
	_ = q.Send(1)
	_ = q.Send(2)

	sentinel := errors.New("eof")
	q.SetErrRecv(sentinel)

	v, err := q.Recv()
	if err != nil || v != 1 {
		t.Fatalf("recv = %d, %v, want 1, nil (drain before poison applies)", v, err)
	}
	v, err = q.Recv()
	if err != nil || v != 2 {
		t.Fatalf("recv = %d, %v, want 2, nil", v, err)
	}
	if _, err := q.Recv(); !errors.Is(err, sentinel) {
		t.Fatalf("recv on empty poisoned queue = %v, want %v", err, sentinel)
	}
}

func TestFlushInvokesDestructorAndUnblocksSend(t *testing.T) {
	var destroyed []int
	var mu sync.Mutex
	q := New[int](1, func(v int) {
		mu.Lock()
		destroyed = append(destroyed, v)
		mu.Unlock()
	})
	_ = q.Send(1)

	done := make(chan error, 1)
	go func() { done <- q.Send(2) }()
	time.Sleep(10 * time.Millisecond)

	q.Flush()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("send after flush: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("flush did not unblock pending send")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(destroyed) != 1 || destroyed[0] != 1 {
		t.Fatalf("destroyed = %v, want [1]", destroyed)
	}
}

func TestLenNeverExceedsCapacity(t *testing.T) {
	q := New[int](3, nil)
	for i := 0; i < 3; i++ {
		if err := q.Send(i); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if l := q.Len(); l != 3 {
		t.Fatalf("len = %d, want 3", l)
	}
	if l := q.Len(); l > 3 || l < 0 {
		t.Fatalf("len out of bounds: %d", l)
	}
}
