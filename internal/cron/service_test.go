package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeLock struct {
	acquired bool
	err      error
	releases int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	return f.acquired, f.err
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.releases++
	return nil
}

type recordedJob struct {
	name string
	runs int
	err  error
}

func (j *recordedJob) Name() string { return j.name }

func (j *recordedJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestRunCycle_RunsAllJobsDespiteFailure(t *testing.T) {
	first := &recordedJob{name: "first", err: errors.New("boom")}
	second := &recordedJob{name: "second"}
	lock := &fakeLock{acquired: true}

	svc, err := NewService(ServiceParams{
		Logger:   newTestLogger(),
		Registry: NewRegistry(first, second),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("expected both jobs to run, got %d and %d", first.runs, second.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock release, got %d", lock.releases)
	}
}

func TestRunCycle_SkipsWhenLockHeld(t *testing.T) {
	job := &recordedJob{name: "only"}
	svc, err := NewService(ServiceParams{
		Logger:   newTestLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: false},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("unexpected cycle error: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("expected jobs skipped while another instance holds the lock")
	}
}

func TestRunCycle_LockErrorSurfaces(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger: newTestLogger(),
		Lock:   &fakeLock{err: errors.New("redis down")},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if err := svc.runCycle(context.Background()); err == nil {
		t.Fatal("expected lock error to surface")
	}
}

func TestRegistry_IgnoresNilJobs(t *testing.T) {
	registry := NewRegistry(nil, &recordedJob{name: "real"})
	registry.Register(nil)
	if len(registry.Jobs()) != 1 {
		t.Fatalf("expected 1 job, got %d", len(registry.Jobs()))
	}
}
