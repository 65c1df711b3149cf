package jobstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/cuongbtq/jobstore/internal/domain"
	"github.com/cuongbtq/jobstore/internal/events"
	"github.com/cuongbtq/jobstore/internal/funcref"
)

// AddJob inserts a new job, assigns its generated ID and appends it to the
// mirror. Args and Kwargs are replaced with their decoded form so the mirror
// matches what LoadJobs restores.
func (s *Store) AddJob(ctx context.Context, job *domain.Job) error {
	const op = "add job"

	if err := validate(job); err != nil {
		return domain.NewStoreError(op, domain.ErrValidation, err)
	}

	ref, fn, err := s.reference(job)
	if err != nil {
		return domain.NewStoreError(op, domain.ErrValidation, err)
	}

	row, err := s.encodeJob(job, ref)
	if err != nil {
		return domain.NewStoreError(op, domain.ErrValidation, err)
	}

	query := s.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING "id"`,
		s.table, quotedColumns(),
	))

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, row.values()...).Scan(&id); err != nil {
		if s.dialect.isUniqueViolation(err) {
			s.logger.Warn("Job name already taken",
				slog.String("name", job.Name),
			)
			return domain.NewStoreError(op, domain.ErrDuplicateJobName,
				errors.Newf("a job named %q already exists", job.Name))
		}
		s.logger.Error("Failed to insert job",
			slog.String("func_ref", ref),
			slog.Any("error", err),
		)
		return domain.NewStoreError(op, domain.ErrStorageUnavailable, errors.Wrap(err, "insert job"))
	}

	job.ID = id
	job.FuncRef = ref
	job.Func = fn
	job.Args = row.args
	job.Kwargs = row.kwargs
	s.jobs = append(s.jobs, job)

	s.logger.Info("Job added",
		slog.Int64("job_id", id),
		slog.String("job", job.String()),
		slog.Time("next_run_time", row.NextRunTime),
	)
	s.publish(ctx, events.JobAdded, job)

	return nil
}

// RemoveJob deletes a stored job and drops it from the mirror
func (s *Store) RemoveJob(ctx context.Context, job *domain.Job) error {
	const op = "remove job"

	if job == nil || !job.Persisted() {
		return domain.NewStoreError(op, domain.ErrJobNotFound, errors.New("job has no id"))
	}

	// Checked before the delete so a mirror miss leaves the table untouched
	idx := s.indexOf(job.ID)
	if idx < 0 {
		return domain.NewStoreError(op, domain.ErrJobNotFound,
			errors.Newf("job %d is not in the loaded job set", job.ID))
	}

	query := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, s.table))

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.execOne(ctx, op, job.ID, query, job.ID); err != nil {
		return err
	}

	s.jobs = slices.Delete(s.jobs, idx, idx+1)

	s.logger.Info("Job removed",
		slog.Int64("job_id", job.ID),
		slog.String("job", job.String()),
	)
	s.publish(ctx, events.JobRemoved, job)

	return nil
}

// PurgeJob deletes the stored row with the given id whether or not it is in
// the mirror, so rows that LoadJobs cannot restore can still be removed. A
// mirrored job with that id is dropped as well.
func (s *Store) PurgeJob(ctx context.Context, id int64) error {
	const op = "purge job"

	if id <= 0 {
		return domain.NewStoreError(op, domain.ErrJobNotFound, errors.Newf("invalid job id %d", id))
	}

	query := s.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE "id" = ?`, s.table))

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.execOne(ctx, op, id, query, id); err != nil {
		return err
	}

	job := &domain.Job{ID: id}
	if idx := s.indexOf(id); idx >= 0 {
		job = s.jobs[idx]
		s.jobs = slices.Delete(s.jobs, idx, idx+1)
	}

	s.logger.Info("Job purged",
		slog.Int64("job_id", id),
		slog.String("job", job.String()),
	)
	s.publish(ctx, events.JobRemoved, job)

	return nil
}

// UpdateJob persists NextRunTime and Runs of a stored job. No other column
// is written and the mirror is left as is.
func (s *Store) UpdateJob(ctx context.Context, job *domain.Job) error {
	const op = "update job"

	if job == nil || !job.Persisted() {
		return domain.NewStoreError(op, domain.ErrJobNotFound, errors.New("job has no id"))
	}
	if job.NextRunTime.IsZero() {
		return domain.NewStoreError(op, domain.ErrValidation, errors.New("next_run_time is required"))
	}

	query := s.db.Rebind(fmt.Sprintf(
		`UPDATE %s SET "next_run_time" = ?, "runs" = ? WHERE "id" = ?`, s.table,
	))

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	nextRunTime := storedTime(job.NextRunTime)
	if err := s.execOne(ctx, op, job.ID, query, nextRunTime, job.Runs, job.ID); err != nil {
		return err
	}

	s.logger.Debug("Job updated",
		slog.Int64("job_id", job.ID),
		slog.Time("next_run_time", nextRunTime),
		slog.Int64("runs", job.Runs),
	)
	s.publish(ctx, events.JobUpdated, job)

	return nil
}

// LoadJobs reads every stored job and replaces the mirror with them. If any
// row cannot be restored the mirror is kept and a *LoadError naming every
// failed row is returned.
func (s *Store) LoadJobs(ctx context.Context) error {
	const op = "load jobs"

	query := fmt.Sprintf(`SELECT "id", %s FROM %s ORDER BY "id"`, quotedColumns(), s.table)

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.Error("Failed to select jobs",
			slog.Any("error", err),
		)
		return domain.NewStoreError(op, domain.ErrStorageUnavailable, errors.Wrap(err, "select jobs"))
	}

	jobs := make([]*domain.Job, 0, len(rows))
	var loadErr LoadError
	for i := range rows {
		job, err := s.decodeJob(&rows[i])
		if err != nil {
			loadErr.Rows = append(loadErr.Rows, RowError{ID: rows[i].ID, Err: err})
			continue
		}
		jobs = append(jobs, job)
	}

	if len(loadErr.Rows) > 0 {
		s.logger.Error("Failed to restore stored jobs",
			slog.Any("job_ids", loadErr.IDs()),
			slog.Int("total", len(rows)),
		)
		return &loadErr
	}

	s.jobs = jobs

	s.logger.Info("Jobs loaded",
		slog.Int("count", len(jobs)),
	)

	return nil
}

// execOne runs a statement that must affect the row with the given id
func (s *Store) execOne(ctx context.Context, op string, id int64, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to execute statement",
			slog.String("op", op),
			slog.Int64("job_id", id),
			slog.Any("error", err),
		)
		return domain.NewStoreError(op, domain.ErrStorageUnavailable, errors.Wrap(err, "execute statement"))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError(op, domain.ErrStorageUnavailable, errors.Wrap(err, "rows affected"))
	}
	if affected == 0 {
		return domain.NewStoreError(op, domain.ErrJobNotFound, errors.Newf("no stored job with id %d", id))
	}
	return nil
}

// reference returns the func_ref to store and the function it resolves to
func (s *Store) reference(job *domain.Job) (string, funcref.Func, error) {
	ref := job.FuncRef
	if ref == "" {
		derived, err := funcref.Ref(job.Func)
		if err != nil {
			return "", nil, err
		}
		ref = derived
	}
	if len(ref) > domain.MaxFuncRefLength {
		return "", nil, errors.Newf("func_ref longer than %d characters", domain.MaxFuncRefLength)
	}

	fn, err := s.resolver.Resolve(ref)
	if err != nil {
		return "", nil, errors.WithHint(err, "register the function with funcref.Register before adding the job")
	}
	return ref, fn, nil
}

func validate(job *domain.Job) error {
	switch {
	case job == nil:
		return errors.New("job is nil")
	case job.Persisted():
		return errors.Newf("job already has id %d", job.ID)
	case job.Trigger == nil:
		return errors.New("trigger is required")
	case job.FuncRef == "" && job.Func == nil:
		return errors.New("func or func_ref is required")
	case job.MisfireGraceTime < 0:
		return errors.Newf("misfire_grace_time must not be negative, got %d", job.MisfireGraceTime)
	case job.NextRunTime.IsZero():
		return errors.New("next_run_time is required")
	case len(job.Name) > domain.MaxNameLength:
		return errors.Newf("name longer than %d characters", domain.MaxNameLength)
	case job.MaxRuns != nil && *job.MaxRuns <= 0:
		return errors.Newf("max_runs must be positive, got %d", *job.MaxRuns)
	case job.MaxConcurrency != nil && *job.MaxConcurrency <= 0:
		return errors.Newf("max_concurrency must be positive, got %d", *job.MaxConcurrency)
	}

	if err := job.Trigger.Validate(); err != nil {
		return errors.Wrap(err, "invalid trigger")
	}
	return nil
}

func (s *Store) publish(ctx context.Context, eventType events.Type, job *domain.Job) {
	event := events.NewEvent(eventType, job)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish job event",
			slog.String("event_type", string(eventType)),
			slog.Int64("job_id", job.ID),
			slog.Any("error", err),
		)
	}
}
