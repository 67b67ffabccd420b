package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

type scriptedRunner struct {
	results []struct {
		summary outbox.Summary
		err     error
	}
	calls  int
	cancel context.CancelFunc
}

func (r *scriptedRunner) RunOnce(ctx context.Context) (outbox.Summary, error) {
	if r.calls >= len(r.results) {
		if r.cancel != nil {
			r.cancel()
		}
		return outbox.Summary{}, nil
	}
	result := r.results[r.calls]
	r.calls++
	if r.calls == len(r.results) && r.cancel != nil {
		r.cancel()
	}
	return result.summary, result.err
}

func TestNewService_Defaults(t *testing.T) {
	if _, err := NewService(ServiceParams{Runner: &scriptedRunner{}}); err == nil {
		t.Fatal("expected missing logger error")
	}
	if _, err := NewService(ServiceParams{Logger: newTestLogger()}); err == nil {
		t.Fatal("expected missing runner error")
	}

	svc, err := NewService(ServiceParams{Logger: newTestLogger(), Runner: &scriptedRunner{}})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if svc.pollInterval != defaultPollInterval {
		t.Fatalf("expected default poll interval %s, got %s", defaultPollInterval, svc.pollInterval)
	}
}

func TestRun_FullBatchLoopsImmediately(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runner := &scriptedRunner{
		results: []struct {
			summary outbox.Summary
			err     error
		}{
			{summary: outbox.Summary{Processed: 50}},
			{summary: outbox.Summary{Processed: 12, Failed: 1}},
			{summary: outbox.Summary{Processed: 1}},
		},
		cancel: cancel,
	}

	// A long poll interval proves busy passes never wait on the timer.
	svc, err := NewService(ServiceParams{
		Logger:       newTestLogger(),
		Runner:       runner,
		PollInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	err = svc.Run(ctx)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected run error: %v", err)
	}
	if runner.calls != 3 {
		t.Fatalf("expected 3 passes, got %d", runner.calls)
	}
}

func TestRun_ErrorBackoffThenRecovery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runner := &scriptedRunner{
		results: []struct {
			summary outbox.Summary
			err     error
		}{
			{err: errors.New("db down")},
			{summary: outbox.Summary{Processed: 2}},
			{summary: outbox.Summary{Processed: 1}},
		},
		cancel: cancel,
	}
	svc, err := NewService(ServiceParams{
		Logger:       newTestLogger(),
		Runner:       runner,
		PollInterval: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	runErr := svc.Run(ctx)
	if !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		t.Fatalf("unexpected run error: %v", runErr)
	}
	if runner.calls != 3 {
		t.Fatalf("expected 3 passes, got %d", runner.calls)
	}
}

func TestNextBackoff(t *testing.T) {
	base := 30 * time.Second
	max := 5 * time.Minute

	if got := nextBackoff(base, base, max); got != time.Minute {
		t.Fatalf("expected doubling to 1m, got %s", got)
	}
	if got := nextBackoff(4*time.Minute, base, max); got != max {
		t.Fatalf("expected cap at %s, got %s", max, got)
	}
	if got := nextBackoff(0, base, max); got != time.Minute {
		t.Fatalf("expected zero current to restart from base, got %s", got)
	}
}

func TestWithJitter(t *testing.T) {
	d := time.Second
	for i := 0; i < 100; i++ {
		got := withJitter(d)
		if got < d || got > d+jitterWindow {
			t.Fatalf("jittered duration %s outside [%s, %s]", got, d, d+jitterWindow)
		}
	}
	if got := withJitter(0); got != 0 {
		t.Fatalf("expected zero passthrough, got %s", got)
	}
}

func TestIdle_WakeChannelShortensWait(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: newTestLogger(), Runner: &scriptedRunner{}})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	wake := make(chan *redis.Message, 1)
	wake <- &redis.Message{Payload: "1"}
	start := time.Now()
	if err := svc.idle(context.Background(), time.Minute, wake); err != nil {
		t.Fatalf("unexpected idle error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected wake-up hint to cut the idle wait short")
	}

	start = time.Now()
	if err := svc.sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected sleep error: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("expected sleep to wait out the duration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.idle(ctx, time.Minute, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
