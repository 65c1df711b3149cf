package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/cuongbtq/jobstore/internal/domain"
)

// JobStore is the part of jobstore.Store the admin API drives
type JobStore interface {
	Jobs() []*domain.Job
	Job(id int64) (*domain.Job, bool)
	LoadJobs(ctx context.Context) error
	RemoveJob(ctx context.Context, job *domain.Job) error
	PurgeJob(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	String() string
}

// Storage serialises HTTP handlers onto a single job store. The store keeps
// no lock of its own, so every call goes through mu.
type Storage struct {
	mu    sync.Mutex
	store JobStore
}

func NewStorage(store JobStore) *Storage {
	return &Storage{store: store}
}

type JobFilter struct {
	PageSize int
	Cursor   *JobCursor
}

// JobCursor points just past the last job of the previous page
type JobCursor struct {
	AfterID int64
}

// ListJobs returns up to PageSize+1 mirror entries in id order so the caller
// can tell whether another page exists
func (s *Storage) ListJobs(filter JobFilter) []*domain.Job {
	s.mu.Lock()
	jobs := s.store.Jobs()
	s.mu.Unlock()

	slices.SortFunc(jobs, func(a, b *domain.Job) int {
		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Cursor != nil {
		start, _ := slices.BinarySearchFunc(jobs, filter.Cursor.AfterID+1, func(j *domain.Job, id int64) int {
			return cmp.Compare(j.ID, id)
		})
		jobs = jobs[start:]
	}

	if filter.PageSize > 0 && len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}
	return jobs
}

func (s *Storage) GetJobByID(id int64) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.store.Job(id)
	if !ok {
		return nil, domain.NewStoreError("get job", domain.ErrJobNotFound, nil)
	}
	return job, nil
}

// Reload rebuilds the mirror from the table and returns the job count
func (s *Storage) Reload(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.LoadJobs(ctx); err != nil {
		return 0, err
	}
	return len(s.store.Jobs()), nil
}

// DeleteJob removes a mirrored job, or deletes the row directly when the id is
// not in the mirror, such as a row a reload could not restore
func (s *Storage) DeleteJob(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.store.Job(id); ok {
		return s.store.RemoveJob(ctx, job)
	}
	return s.store.PurgeJob(ctx, id)
}

func (s *Storage) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Ping(ctx)
}

func (s *Storage) Describe() string {
	return s.store.String()
}
