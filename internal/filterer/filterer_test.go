package filterer_test

import (
	"context"
	"testing"
	"time"

	"github.com/livekit/protocol/logger"

	"framepipe/internal/filterer"
	"framepipe/internal/media"
	"framepipe/internal/perrors"
	"framepipe/internal/queue"
)

func newQueues(t *testing.T) (*queue.Queue[*media.Frame], *queue.Queue[*media.Frame]) {
	t.Helper()
	destroy := func(f *media.Frame) { f.Release() }
	return queue.New(8, destroy), queue.New(8, destroy)
}

func TestTrimFiltererDropsFramesBeforeSkipTS(t *testing.T) {
	frameQueue, sinkQueue := newQueues(t)
	task := filterer.NewTask(logger.GetLogger(), filterer.NewTrimFilterer(100, 0), frameQueue, sinkQueue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	if err := frameQueue.Send(media.NewCPUFrame(50, nil)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := frameQueue.Send(media.NewCPUFrame(150, nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	frame, err := sinkQueue.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if frame.PTS != 150 {
		t.Fatalf("frame.PTS = %d, want 150 (the 50 frame should have been dropped)", frame.PTS)
	}

	cancel()
	frameQueue.SetErrRecv(perrors.EOF)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not exit after cancel and upstream poison")
	}
}

func TestTrimFiltererEndsStreamPastMaxPTS(t *testing.T) {
	frameQueue, sinkQueue := newQueues(t)
	task := filterer.NewTask(logger.GetLogger(), filterer.NewTrimFilterer(0, 200), frameQueue, sinkQueue)

	done := make(chan error, 1)
	go func() { done <- task.Run(context.Background()) }()

	if err := frameQueue.Send(media.NewCPUFrame(100, nil)); err != nil {
		t.Fatalf("send: %v", err)
	}
	frame, err := sinkQueue.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if frame.PTS != 100 {
		t.Fatalf("frame.PTS = %d, want 100", frame.PTS)
	}

	if err := frameQueue.Send(media.NewCPUFrame(250, nil)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case err := <-done:
		if !perrors.IsEOF(err) {
			t.Fatalf("task.Run = %v, want EOF once pts exceeded max_pts", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task did not end the stream once pts exceeded max_pts")
	}

	if _, err := sinkQueue.Recv(); !perrors.IsEOF(err) {
		t.Fatalf("sink_queue recv after max_pts cutoff = %v, want EOF", err)
	}
}

func TestTaskPropagatesUpstreamPoisonDownstream(t *testing.T) {
	frameQueue, sinkQueue := newQueues(t)
	task := filterer.NewTask(logger.GetLogger(), filterer.NewTrimFilterer(0, 0), frameQueue, sinkQueue)

	done := make(chan error, 1)
	go func() { done <- task.Run(context.Background()) }()

	frameQueue.SetErrRecv(perrors.EOF)

	select {
	case err := <-done:
		if !perrors.IsEOF(err) {
			t.Fatalf("task.Run = %v, want EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("task did not terminate on upstream poison")
	}

	if _, err := sinkQueue.Recv(); !perrors.IsEOF(err) {
		t.Fatalf("sink_queue recv after teardown = %v, want EOF", err)
	}
}
