package queue

import (
	"context"
	"sync"
)

// Job is one dispatch request: run the campaign with this id.
type Job struct {
	CampaignID int `json:"campaign_id"`
}

// Queue carries dispatch jobs from the API/scheduler to whichever worker
// executes them.
type Queue interface {
	Publish(ctx context.Context, job Job) error
	// Consume blocks, invoking handler once per job, until ctx is cancelled.
	Consume(ctx context.Context, handler func(context.Context, Job) error) error
}

// InMemory runs jobs through a buffered channel inside a single process. The
// server binary uses it when no broker is configured.
type InMemory struct {
	once sync.Once
	jobs chan Job
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (q *InMemory) init() {
	q.once.Do(func() { q.jobs = make(chan Job, 256) })
}

func (q *InMemory) Publish(ctx context.Context, job Job) error {
	q.init()
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemory) Consume(ctx context.Context, handler func(context.Context, Job) error) error {
	q.init()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-q.jobs:
			// handler errors are the handler's to log; the job is not retried
			_ = handler(ctx, job)
		}
	}
}

var _ Queue = (*InMemory)(nil)
