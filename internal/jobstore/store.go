// Package jobstore persists scheduler jobs in a relational table and keeps
// an in-memory mirror of the stored set.
//
// The store does no locking of its own. Callers must serialise AddJob,
// RemoveJob, UpdateJob and LoadJobs; the mirror is only mutated after the
// corresponding database write has succeeded.
package jobstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/jobstore/internal/codec"
	"github.com/cuongbtq/jobstore/internal/domain"
	"github.com/cuongbtq/jobstore/internal/events"
	"github.com/cuongbtq/jobstore/internal/funcref"
	"github.com/cuongbtq/jobstore/shared/database"
)

// DefaultQueryTimeout bounds every database round-trip when Options.QueryTimeout is zero
const DefaultQueryTimeout = 30 * time.Second

// Options configures a Store. Exactly one of DB and URL must be set.
type Options struct {
	// DB is a ready connection handle owned by the caller
	DB *sqlx.DB
	// URL is a connection URL the store opens and owns, see database.ParseURL
	URL string
	// Addr describes a caller-provided DB in String(); it must not hold a password
	Addr string

	TableName string
	// Schema is an existing schema (PostgreSQL) or attached database (SQLite) holding the table
	Schema string

	Codec     *codec.Codec
	Resolver  *funcref.Registry
	Publisher events.Publisher
	Logger    *slog.Logger

	QueryTimeout time.Duration
}

// Store is the persistent job store
type Store struct {
	db      *sqlx.DB
	client  *database.Client
	dialect dialect
	addr    string

	table        string
	codec        *codec.Codec
	resolver     *funcref.Registry
	publisher    events.Publisher
	logger       *slog.Logger
	queryTimeout time.Duration

	jobs []*domain.Job
}

// New connects (when given a URL), provisions the job table and returns a
// ready store. Any failure leaves nothing open behind.
func New(ctx context.Context, opts Options) (*Store, error) {
	if (opts.DB == nil) == (opts.URL == "") {
		return nil, domain.NewStoreError("new job store", domain.ErrConfiguration,
			errors.New("exactly one of a connection handle or a connection url is required"))
	}

	s := &Store{
		table:        qualifiedTable(opts.Schema, defaultString(opts.TableName, DefaultTableName)),
		codec:        opts.Codec,
		resolver:     opts.Resolver,
		publisher:    opts.Publisher,
		logger:       opts.Logger,
		queryTimeout: opts.QueryTimeout,
		jobs:         []*domain.Job{},
	}
	if s.codec == nil {
		s.codec = codec.Default
	}
	if s.resolver == nil {
		s.resolver = funcref.Default
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.String("component", "jobstore"))
	if s.queryTimeout <= 0 {
		s.queryTimeout = DefaultQueryTimeout
	}

	if opts.DB != nil {
		s.db = opts.DB
		s.addr = defaultString(opts.Addr, opts.DB.DriverName()+" (caller-provided connection)")
	} else {
		if _, _, err := database.ParseURL(opts.URL); err != nil {
			return nil, domain.NewStoreError("new job store", domain.ErrConfiguration, err)
		}
		client, err := database.NewClient(ctx, &database.Config{URL: opts.URL}, s.logger)
		if err != nil {
			return nil, domain.NewStoreError("connect job store", domain.ErrStorageUnavailable, err)
		}
		s.client = client
		s.db = client.GetDB()
		s.addr = client.Addr()
	}

	d, err := dialectFor(s.db.DriverName())
	if err != nil {
		s.closeOwned()
		return nil, domain.NewStoreError("new job store", domain.ErrConfiguration, err)
	}
	s.dialect = d

	if err := s.provision(ctx); err != nil {
		s.closeOwned()
		return nil, domain.NewStoreError("provision job table", domain.ErrStorageUnavailable,
			errors.Wrapf(err, "create table %s", s.table))
	}

	s.logger.Info("Job store ready",
		slog.String("addr", s.addr),
		slog.String("table", s.table),
		slog.String("codec", s.codec.Name()),
	)

	return s, nil
}

// String describes the backing store for diagnostics
func (s *Store) String() string {
	return fmt.Sprintf("JobStore(url=%s, table=%s)", s.addr, s.table)
}

// Jobs returns a snapshot of the mirror
func (s *Store) Jobs() []*domain.Job {
	out := make([]*domain.Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// Job returns the mirror entry with the given id
func (s *Store) Job(id int64) (*domain.Job, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.jobs[i], true
	}
	return nil, false
}

// Ping checks the backing database
func (s *Store) Ping(ctx context.Context) error {
	if err := database.HealthCheck(ctx, s.db); err != nil {
		return domain.NewStoreError("ping", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Stats describes the connection pool
func (s *Store) Stats() string {
	return database.FormatStats(s.db)
}

// Close releases the connection if the store opened it. A caller-provided
// handle stays open.
func (s *Store) Close() error {
	return s.closeOwned()
}

func (s *Store) closeOwned() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) indexOf(id int64) int {
	for i, j := range s.jobs {
		if j.ID == id {
			return i
		}
	}
	return -1
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
