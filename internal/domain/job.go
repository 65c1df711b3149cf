package domain

import (
	"time"

	"github.com/cuongbtq/jobstore/internal/funcref"
	"github.com/cuongbtq/jobstore/internal/trigger"
)

// Column bounds shared by the schema and validation
const (
	MaxFuncRefLength = 1024
	MaxNameLength    = 1024
)

// Job is the persisted unit of schedulable work.
//
// ID is zero until the job store inserts the record. Trigger, FuncRef, Args,
// Kwargs and MisfireGraceTime are written once; NextRunTime and Runs are the
// only fields UpdateJob writes back.
type Job struct {
	ID      int64
	Trigger trigger.Trigger

	// FuncRef is the stored reference token. When empty on add it is derived from Func.
	FuncRef string
	Func    funcref.Func

	// Args and Kwargs hold plain values. After a store round trip integers
	// are int64 (uint64 above math.MaxInt64), floats are float64, lists are
	// []any and objects map[string]any. nil comes back empty, not nil.
	Args   []any
	Kwargs map[string]any

	// Name is optional; an empty name is stored as NULL.
	Name string

	// MisfireGraceTime is expressed in whole seconds.
	MisfireGraceTime int
	MaxRuns          *int
	MaxConcurrency   *int

	NextRunTime time.Time
	Runs        int64
}

// Persisted reports whether the store has assigned an ID
func (j *Job) Persisted() bool {
	return j.ID != 0
}

// MisfireGrace returns MisfireGraceTime as a duration
func (j *Job) MisfireGrace() time.Duration {
	return time.Duration(j.MisfireGraceTime) * time.Second
}

func (j *Job) String() string {
	if j.Name != "" {
		return j.Name
	}
	return j.FuncRef
}
