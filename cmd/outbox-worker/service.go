package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pipeflowhq/pipeflow-backend/pkg/logger"
	"github.com/pipeflowhq/pipeflow-backend/pkg/outbox"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type batchRunner interface {
	RunOnce(ctx context.Context) (outbox.Summary, error)
}

type wakeSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error)
}

// ServiceParams configure the worker loop.
type ServiceParams struct {
	Logger       *logger.Logger
	Runner       batchRunner
	Subscriber   wakeSubscriber
	PollInterval time.Duration
}

// Service drives the dispatcher continuously. The poll ticker is the
// correctness mechanism; wake-up hints from publishers only shorten the
// idle wait, so a dropped hint costs latency, never delivery.
type Service struct {
	logg         *logger.Logger
	runner       batchRunner
	subscriber   wakeSubscriber
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Runner == nil {
		return nil, errors.New("runner is required")
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Service{
		logg:         params.Logger,
		runner:       params.Runner,
		subscriber:   params.Subscriber,
		pollInterval: interval,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	wake := s.wakeChannel(ctx)
	backoff := s.pollInterval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox worker context canceled")
			return ctx.Err()
		default:
		}

		summary, err := s.runner.RunOnce(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox worker pass failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.idle(ctx, withJitter(backoff), wake); err != nil {
				return err
			}
			continue
		}

		backoff = s.pollInterval

		// A full batch suggests more work is queued; go straight back in.
		if summary.Processed+summary.Failed > 0 {
			continue
		}

		if err := s.idle(ctx, withJitter(s.pollInterval), wake); err != nil {
			return err
		}
	}
}

// wakeChannel subscribes to publish hints. Returns nil when redis is not
// wired; the loop then relies on polling alone.
func (s *Service) wakeChannel(ctx context.Context) <-chan *redis.Message {
	if s.subscriber == nil {
		return nil
	}
	sub, err := s.subscriber.Subscribe(ctx, outbox.WakeChannel)
	if err != nil {
		s.logg.Error(ctx, "wake-up subscription failed, polling only", err)
		return nil
	}
	s.logg.Info(s.logg.WithField(ctx, "channel", outbox.WakeChannel), "subscribed to wake-up hints")
	return sub.Channel()
}

func (s *Service) idle(ctx context.Context, d time.Duration, wake <-chan *redis.Message) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case msg, ok := <-wake:
		if !ok {
			// Subscription closed; fall back to the timer next iteration.
			return s.sleep(ctx, d)
		}
		s.logg.Info(s.logg.WithField(ctx, "payload", fmt.Sprintf("%.64s", msg.Payload)), "wake-up hint received")
		return nil
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
