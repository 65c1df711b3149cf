package jobstore

import (
	"fmt"
	"strings"
)

// RowError is the failure to restore a single stored job
type RowError struct {
	ID  int64
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("job %d: %v", e.ID, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// LoadError aggregates every row LoadJobs could not restore
type LoadError struct {
	Rows []RowError
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Rows))
	for i, row := range e.Rows {
		msgs[i] = row.Error()
	}
	return fmt.Sprintf("failed to load %d stored job(s) %v: %s", len(e.Rows), e.IDs(), strings.Join(msgs, "; "))
}

// IDs returns the ids of the failed rows
func (e *LoadError) IDs() []int64 {
	ids := make([]int64, len(e.Rows))
	for i, row := range e.Rows {
		ids[i] = row.ID
	}
	return ids
}

func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Rows))
	for i, row := range e.Rows {
		errs[i] = row
	}
	return errs
}
