package dto

import (
	"time"

	"github.com/cuongbtq/jobstore/internal/domain"
)

type ListJobsRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type ReloadResponse struct {
	Loaded int `json:"loaded"`
}

type TriggerDTO struct {
	Kind string `json:"kind"`
	Rule any    `json:"rule"`
}

type JobDTO struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name,omitempty"`
	FuncRef          string         `json:"func_ref"`
	Trigger          TriggerDTO     `json:"trigger"`
	Args             []any          `json:"args"`
	Kwargs           map[string]any `json:"kwargs"`
	MisfireGraceTime int            `json:"misfire_grace_time"`
	MaxRuns          *int           `json:"max_runs,omitempty"`
	MaxConcurrency   *int           `json:"max_concurrency,omitempty"`
	NextRunTime      string         `json:"next_run_time"`
	Runs             int64          `json:"runs"`
}

func FromJob(job *domain.Job) JobDTO {
	return JobDTO{
		ID:      job.ID,
		Name:    job.Name,
		FuncRef: job.FuncRef,
		Trigger: TriggerDTO{
			Kind: job.Trigger.Kind(),
			Rule: job.Trigger,
		},
		Args:             job.Args,
		Kwargs:           job.Kwargs,
		MisfireGraceTime: job.MisfireGraceTime,
		MaxRuns:          job.MaxRuns,
		MaxConcurrency:   job.MaxConcurrency,
		NextRunTime:      job.NextRunTime.UTC().Format(time.RFC3339Nano),
		Runs:             job.Runs,
	}
}
