// Command framepipe-demo wires a synthetic in-memory source through a
// full pipeline and prints the frames it pops, exercising seek and
// graceful shutdown: signal.NotifyContext for Ctrl-C handling, config
// loaded from an optional path argument, and a slog logger handed to the
// pipeline manager (the filterer stage logs through livekit's logger).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/zaf/g711"

	"framepipe/internal/config"
	"framepipe/internal/decoder/testcodec"
	"framepipe/internal/filterer"
	"framepipe/internal/manager"
	"framepipe/internal/media"
	"framepipe/internal/perrors"
	"framepipe/internal/reader"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Default()
	if len(os.Args) > 1 {
		loaded, err := config.LoadFile(os.Args[1])
		if err != nil {
			logger.Error("config error", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	mgr := manager.New(logger, cfg)
	p := mgr.Open()
	p.RegisterSource(newSyntheticSource(200, 20*time.Millisecond))
	p.RegisterDecoder(testcodec.New(), media.Microsecond)
	p.RegisterFilterer(filterer.NewTrimFilterer(0, 0))

	if err := p.Start(0); err != nil {
		logger.Error("pipeline start failed", "error", err)
		os.Exit(1)
	}

	go func() {
		time.Sleep(500 * time.Millisecond)
		logger.Info("requesting seek", "target_us", int64(2_000_000))
		p.Seek(2_000_000)
	}()

	frames := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		frame, err := p.PopFrame()
		if err != nil {
			if !perrors.IsEOF(err) {
				logger.Warn("pipeline ended with error", "error", err)
			}
			break loop
		}
		frames++
		logger.Info("frame", "pts_us", frame.PTS, "bytes", len(frame.Data))
		frame.Release()
	}

	logger.Info("shutting down...", "frames_received", frames)
	mgr.CloseAll()
	logger.Info("shutdown complete")
}

// syntheticSource produces A-law-encoded silence packets at a fixed
// interval so the demo exercises the decoder without a real media file.
type syntheticSource struct {
	remaining int
	frameDur  time.Duration
	pts       int64
	tb        media.TimeBase
}

func newSyntheticSource(count int, frameDur time.Duration) *syntheticSource {
	return &syntheticSource{
		remaining: count,
		frameDur:  frameDur,
		tb:        media.Microsecond,
	}
}

func (s *syntheticSource) Seek(ts int64) error {
	s.pts = ts
	return nil
}

func (s *syntheticSource) Pull() (*media.Packet, error) {
	if s.remaining <= 0 {
		return nil, perrors.EOF
	}
	s.remaining--

	pcm := make([]byte, 160)
	payload := g711.EncodeAlaw(pcm)
	pkt := media.NewPacket(payload, s.pts, s.tb, false)
	s.pts += s.frameDur.Microseconds()

	time.Sleep(5 * time.Millisecond)
	return pkt, nil
}

func (s *syntheticSource) Close() {}

var _ reader.Source = (*syntheticSource)(nil)
