package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/jobstore/internal/domain"
)

// Type identifies a job lifecycle change
type Type string

// Job lifecycle event types
const (
	JobAdded   Type = "job.added"
	JobRemoved Type = "job.removed"
	JobUpdated Type = "job.updated"
)

// Event describes a committed change to a stored job
type Event struct {
	ID          string    `json:"event_id"`
	Type        Type      `json:"type"`
	JobID       int64     `json:"job_id"`
	Name        string    `json:"name,omitempty"`
	FuncRef     string    `json:"func_ref"`
	NextRunTime time.Time `json:"next_run_time"`
	Runs        int64     `json:"runs"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewEvent creates an event for job
func NewEvent(t Type, job *domain.Job) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		JobID:       job.ID,
		Name:        job.Name,
		FuncRef:     job.FuncRef,
		NextRunTime: job.NextRunTime.UTC(),
		Runs:        job.Runs,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher delivers job events. Delivery happens after the database write
// has committed, so a failed publish never undoes a change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the recorded event types in publish order
func (r *Recorder) Types() []Type {
	types := make([]Type, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}
