package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
	swept chan struct{}
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	s.calls.Add(1)
	select {
	case s.swept <- struct{}{}:
	default:
	}
	return 1, s.err
}

func TestSweeper_RunsUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &countingSweeper{swept: make(chan struct{}, 1)}
	s := NewSweeper(target, 5*time.Millisecond, zaptest.NewLogger(t))

	s.Start(context.Background())
	s.Start(context.Background())

	select {
	case <-target.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}

	s.Stop()
	s.Stop()

	calls := target.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if target.calls.Load() != calls {
		t.Fatal("sweeper kept running after Stop")
	}
}

func TestSweeper_StopsWithParentContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &countingSweeper{swept: make(chan struct{}, 1), err: errors.New("db down")}
	s := NewSweeper(target, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	<-target.swept
	cancel()

	s.Stop()
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(&countingSweeper{}, 0, nil)
	if s.interval != defaultSweepInterval {
		t.Fatalf("expected %v, got %v", defaultSweepInterval, s.interval)
	}
}
