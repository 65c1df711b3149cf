package jobstore

import (
	"database/sql"
	"encoding/base64"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cuongbtq/jobstore/internal/codec"
	"github.com/cuongbtq/jobstore/internal/domain"
	"github.com/cuongbtq/jobstore/internal/trigger"
)

// jobRow is one row of the job table
type jobRow struct {
	ID               int64          `db:"id"`
	Trigger          []byte         `db:"trigger"`
	FuncRef          string         `db:"func_ref"`
	Args             []byte         `db:"args"`
	Kwargs           []byte         `db:"kwargs"`
	Name             sql.NullString `db:"name"`
	MisfireGraceTime int            `db:"misfire_grace_time"`
	MaxRuns          sql.NullInt64  `db:"max_runs"`
	MaxConcurrency   sql.NullInt64  `db:"max_concurrency"`
	NextRunTime      time.Time      `db:"next_run_time"`
	Runs             sql.NullInt64  `db:"runs"`

	// args and kwargs hold the encoded blobs read back, as LoadJobs would see them
	args   []any
	kwargs map[string]any
}

// values returns the row in column order, id excluded
func (r *jobRow) values() []any {
	return []any{
		r.Trigger,
		r.FuncRef,
		r.Args,
		r.Kwargs,
		r.Name,
		r.MisfireGraceTime,
		r.MaxRuns,
		r.MaxConcurrency,
		r.NextRunTime,
		r.Runs,
	}
}

// triggerEnvelope stores a trigger next to the kind needed to rebuild it
type triggerEnvelope struct {
	Kind string `json:"kind" yaml:"kind"`
	Rule string `json:"rule" yaml:"rule"`
}

// storedTime is the representation written to next_run_time
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Store) encodeTrigger(t trigger.Trigger) ([]byte, error) {
	rule, err := s.codec.Encode(t)
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(triggerEnvelope{
		Kind: t.Kind(),
		Rule: base64.StdEncoding.EncodeToString(rule),
	})
}

func decodeTrigger(blob []byte) (trigger.Trigger, error) {
	var env triggerEnvelope
	if err := codec.Decode(blob, &env); err != nil {
		return nil, err
	}

	t, err := trigger.New(env.Kind)
	if err != nil {
		return nil, errors.Wrap(err, "rebuild trigger")
	}

	rule, err := base64.StdEncoding.DecodeString(env.Rule)
	if err != nil {
		return nil, errors.Wrap(err, "decode trigger rule")
	}
	if err := codec.Decode(rule, t); err != nil {
		return nil, err
	}
	return t, nil
}

// encodeJob builds the row to insert for job, using ref as func_ref
func (s *Store) encodeJob(job *domain.Job, ref string) (*jobRow, error) {
	triggerBlob, err := s.encodeTrigger(job.Trigger)
	if err != nil {
		return nil, errors.Wrap(err, "encode trigger")
	}

	args := job.Args
	if args == nil {
		args = []any{}
	}
	argsBlob, err := s.codec.Encode(args)
	if err != nil {
		return nil, errors.Wrap(err, "encode args")
	}

	kwargs := job.Kwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	kwargsBlob, err := s.codec.Encode(kwargs)
	if err != nil {
		return nil, errors.Wrap(err, "encode kwargs")
	}

	row := &jobRow{
		Trigger:          triggerBlob,
		FuncRef:          ref,
		Args:             argsBlob,
		Kwargs:           kwargsBlob,
		Name:             sql.NullString{String: job.Name, Valid: job.Name != ""},
		MisfireGraceTime: job.MisfireGraceTime,
		MaxRuns:          nullInt(job.MaxRuns),
		MaxConcurrency:   nullInt(job.MaxConcurrency),
		NextRunTime:      storedTime(job.NextRunTime),
		Runs:             sql.NullInt64{Int64: job.Runs, Valid: true},
	}
	if err := codec.Decode(argsBlob, &row.args); err != nil {
		return nil, errors.Wrap(err, "decode args")
	}
	if err := codec.Decode(kwargsBlob, &row.kwargs); err != nil {
		return nil, errors.Wrap(err, "decode kwargs")
	}
	return row, nil
}

// decodeJob rebuilds a job from a row. Failures are reported with the
// taxonomy kind of the first field that could not be restored.
func (s *Store) decodeJob(row *jobRow) (*domain.Job, error) {
	job := &domain.Job{
		ID:               row.ID,
		FuncRef:          row.FuncRef,
		Name:             row.Name.String,
		MisfireGraceTime: row.MisfireGraceTime,
		MaxRuns:          intPtr(row.MaxRuns),
		MaxConcurrency:   intPtr(row.MaxConcurrency),
		NextRunTime:      row.NextRunTime.UTC(),
		Runs:             row.Runs.Int64,
	}

	var err error
	if job.Trigger, err = decodeTrigger(row.Trigger); err != nil {
		return nil, domain.NewStoreError("decode trigger", domain.ErrCodecVersionMismatch, err)
	}
	if err := codec.Decode(row.Args, &job.Args); err != nil {
		return nil, domain.NewStoreError("decode args", domain.ErrCodecVersionMismatch, err)
	}
	if err := codec.Decode(row.Kwargs, &job.Kwargs); err != nil {
		return nil, domain.NewStoreError("decode kwargs", domain.ErrCodecVersionMismatch, err)
	}

	fn, err := s.resolver.Resolve(row.FuncRef)
	if err != nil {
		return nil, domain.NewStoreError("resolve func_ref", domain.ErrUnresolvableReference,
			errors.WithHint(err, "register the function with funcref.Register before loading jobs"))
	}
	job.Func = fn

	return job, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
