package cron

import "context"

// Job is one maintenance sweep: outbox retention, stale-claim reclaim,
// notification cleanup. Name labels logs and metrics.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry fixes the order maintenance jobs run in within a cycle.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the given jobs, dropping nils so
// feature-flagged jobs can be passed unconditionally.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
