package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one reconciliation pass run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order, keyed by unique name.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

// NewRegistry builds a registry from jobs, skipping nils. A later job with a
// name already taken is ignored.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		_ = registry.Register(job)
	}
	return registry
}

// Register adds job, rejecting duplicate names.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if _, exists := r.byName[job.Name()]; exists {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.byName[job.Name()] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Select narrows the registry to a comma separated list of job names. An
// empty selection keeps every job.
func (r *Registry) Select(names string) (*Registry, error) {
	names = strings.TrimSpace(names)
	if names == "" {
		return r, nil
	}
	selected := NewRegistry()
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		job, ok := r.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		if err := selected.Register(job); err != nil {
			return nil, err
		}
	}
	return selected, nil
}
