package jobstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobstore/internal/codec"
	"github.com/cuongbtq/jobstore/internal/domain"
	"github.com/cuongbtq/jobstore/internal/events"
	"github.com/cuongbtq/jobstore/internal/funcref"
	"github.com/cuongbtq/jobstore/internal/trigger"
)

const (
	sendReportRef = "github.com/cuongbtq/jobstore/internal/jobstore:sendReport"
	cleanupRef    = "github.com/cuongbtq/jobstore/internal/jobstore:cleanup"
)

var (
	t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
)

func sendReport(ctx context.Context, args []any, kwargs map[string]any) error {
	return nil
}

func cleanup(ctx context.Context, args []any, kwargs map[string]any) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *funcref.Registry {
	t.Helper()
	r := funcref.NewRegistry()
	_, err := r.Register(sendReport)
	require.NoError(t, err)
	_, err = r.Register(cleanup)
	require.NoError(t, err)
	return r
}

func sqliteURL(t *testing.T) string {
	return "sqlite3://" + filepath.Join(t.TempDir(), "jobs.db")
}

type testStore struct {
	*Store
	url      string
	recorder *events.Recorder
}

func newSQLiteStore(t *testing.T, url string, mutate ...func(*Options)) *testStore {
	t.Helper()

	recorder := &events.Recorder{}
	opts := Options{
		URL:       url,
		Resolver:  testRegistry(t),
		Publisher: recorder,
		Logger:    discardLogger(),
	}
	for _, m := range mutate {
		m(&opts)
	}

	store, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &testStore{Store: store, url: url, recorder: recorder}
}

func intp(v int) *int {
	return &v
}

func reportJob(name string) *domain.Job {
	return &domain.Job{
		Trigger:          &trigger.Cron{Expr: "0 9 * * *"},
		Func:             sendReport,
		Args:             []any{"finance", 2.0, true},
		Kwargs:           map[string]any{"format": "pdf", "recipients": []any{"cfo@example.com"}},
		Name:             name,
		MisfireGraceTime: 30,
		MaxRuns:          intp(10),
		NextRunTime:      t0,
	}
}

// assertStoredEqual compares everything except the resolved func value.
// want must hold args and kwargs in stored form: AddJob already rewrites them
// that way, and nil collections are stored as empty ones.
func assertStoredEqual(t *testing.T, want, got *domain.Job) {
	t.Helper()

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Trigger, got.Trigger)
	assert.Equal(t, want.FuncRef, got.FuncRef)
	assert.Equal(t, want.Args, got.Args)
	assert.Equal(t, want.Kwargs, got.Kwargs)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.MisfireGraceTime, got.MisfireGraceTime)
	assert.Equal(t, want.MaxRuns, got.MaxRuns)
	assert.Equal(t, want.MaxConcurrency, got.MaxConcurrency)
	assert.Equal(t, want.Runs, got.Runs)
	assert.True(t, want.NextRunTime.Equal(got.NextRunTime), "next_run_time: want %s, got %s", want.NextRunTime, got.NextRunTime)
	assert.NotNil(t, got.Func)
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	a := reportJob("a")
	require.NoError(t, store.AddJob(ctx, a))
	assert.NotZero(t, a.ID)
	assert.Equal(t, sendReportRef, a.FuncRef)
	assert.Equal(t, []*domain.Job{a}, store.Jobs())

	require.NoError(t, store.LoadJobs(ctx))
	loaded := store.Jobs()
	require.Len(t, loaded, 1)
	assertStoredEqual(t, a, loaded[0])
	assert.NotSame(t, a, loaded[0])

	current := loaded[0]
	current.NextRunTime = t1
	current.Runs = 1
	require.NoError(t, store.UpdateJob(ctx, current))

	require.NoError(t, store.LoadJobs(ctx))
	reloaded := store.Jobs()
	require.Len(t, reloaded, 1)
	assert.Equal(t, int64(1), reloaded[0].Runs)
	assert.True(t, t1.Equal(reloaded[0].NextRunTime))

	want := *a
	want.NextRunTime = t1
	want.Runs = 1
	assertStoredEqual(t, &want, reloaded[0])

	require.NoError(t, store.RemoveJob(ctx, reloaded[0]))
	assert.Empty(t, store.Jobs())

	require.NoError(t, store.LoadJobs(ctx))
	assert.Empty(t, store.Jobs())

	assert.Equal(t, []events.Type{events.JobAdded, events.JobUpdated, events.JobRemoved}, store.recorder.Types())
}

func TestStore_RoundTripOptionalFields(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := []*domain.Job{
		{
			Trigger:     &trigger.Interval{Seconds: 300, Start: start},
			FuncRef:     cleanupRef,
			NextRunTime: t0,
			Runs:        7,
		},
		{
			Trigger:          &trigger.Date{At: t1},
			Func:             cleanup,
			Args:             []any{map[string]any{"nested": []any{1.0, "two", nil}}},
			Kwargs:           map[string]any{},
			Name:             "one-off",
			MisfireGraceTime: 0,
			MaxConcurrency:   intp(2),
			NextRunTime:      t1,
		},
	}

	for _, j := range jobs {
		require.NoError(t, store.AddJob(ctx, j))
	}
	assert.Less(t, jobs[0].ID, jobs[1].ID)

	require.NoError(t, store.LoadJobs(ctx))
	loaded := store.Jobs()
	require.Len(t, loaded, 2)

	// nil args and kwargs are stored as empty collections
	want := *jobs[0]
	want.Args = []any{}
	want.Kwargs = map[string]any{}
	assertStoredEqual(t, &want, loaded[0])
	assert.Empty(t, loaded[0].Name)
	assert.Nil(t, loaded[0].MaxRuns)

	assertStoredEqual(t, jobs[1], loaded[1])
}

func TestStore_NumericArgsRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"json", "yaml"} {
		t.Run(name, func(t *testing.T) {
			c, err := codec.ByName(name)
			require.NoError(t, err)

			url := sqliteURL(t)
			writer := newSQLiteStore(t, url, func(o *Options) { o.Codec = c })

			job := reportJob("numbers")
			job.Args = []any{42, int64(1<<53 + 1), 2.0, 0.25}
			job.Kwargs = map[string]any{"user_id": int64(9007199254740993), "batch": []int{1, 2}}
			require.NoError(t, writer.AddJob(ctx, job))

			wantArgs := []any{int64(42), int64(1<<53 + 1), 2.0, 0.25}
			wantKwargs := map[string]any{"user_id": int64(9007199254740993), "batch": []any{int64(1), int64(2)}}
			assert.Equal(t, wantArgs, job.Args)
			assert.Equal(t, wantKwargs, job.Kwargs)

			reader := newSQLiteStore(t, url)
			require.NoError(t, reader.LoadJobs(ctx))
			require.Len(t, reader.Jobs(), 1)
			loaded := reader.Jobs()[0]
			assert.Equal(t, wantArgs, loaded.Args)
			assert.Equal(t, wantKwargs, loaded.Kwargs)
			assertStoredEqual(t, job, loaded)
		})
	}
}

func TestStore_NextRunTimePrecision(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	job := reportJob("precise")
	job.NextRunTime = time.Date(2026, 10, 19, 9, 0, 0, 123456789, time.FixedZone("ICT", 7*3600))
	require.NoError(t, store.AddJob(ctx, job))

	require.NoError(t, store.LoadJobs(ctx))
	got := store.Jobs()[0].NextRunTime
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, job.NextRunTime.Truncate(time.Microsecond).Equal(got))
}

func TestStore_DuplicateName(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	first := reportJob("daily-report")
	require.NoError(t, store.AddJob(ctx, first))

	second := reportJob("daily-report")
	second.Func = cleanup
	err := store.AddJob(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateJobName)
	assert.Zero(t, second.ID)
	assert.Empty(t, second.FuncRef)
	assert.Equal(t, []*domain.Job{first}, store.Jobs())

	require.NoError(t, store.LoadJobs(ctx))
	loaded := store.Jobs()
	require.Len(t, loaded, 1)
	assertStoredEqual(t, first, loaded[0])

	// jobs without a name never collide
	require.NoError(t, store.AddJob(ctx, reportJob("")))
	require.NoError(t, store.AddJob(ctx, reportJob("")))
	assert.Len(t, store.Jobs(), 3)
}

func TestStore_RemoveJob(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	keep := reportJob("keep")
	drop := reportJob("drop")
	require.NoError(t, store.AddJob(ctx, keep))
	require.NoError(t, store.AddJob(ctx, drop))

	require.NoError(t, store.RemoveJob(ctx, drop))
	assert.Equal(t, []*domain.Job{keep}, store.Jobs())

	err := store.RemoveJob(ctx, drop)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	require.NoError(t, store.LoadJobs(ctx))
	loaded := store.Jobs()
	require.Len(t, loaded, 1)
	assert.Equal(t, keep.ID, loaded[0].ID)

	err = store.RemoveJob(ctx, reportJob("never-added"))
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestStore_RemoveJobMissingFromMirror(t *testing.T) {
	ctx := context.Background()
	url := sqliteURL(t)
	owner := newSQLiteStore(t, url)

	job := reportJob("shared")
	require.NoError(t, owner.AddJob(ctx, job))
	require.NoError(t, owner.Close())

	// a second store that never loaded the row must not delete it
	other := newSQLiteStore(t, url)
	err := other.RemoveJob(ctx, job)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	require.NoError(t, other.LoadJobs(ctx))
	require.Len(t, other.Jobs(), 1)
	assert.Equal(t, job.ID, other.Jobs()[0].ID)
}

func TestStore_RemoveJobMissingFromTable(t *testing.T) {
	ctx := context.Background()
	url := sqliteURL(t)
	store := newSQLiteStore(t, url)

	job := reportJob("gone")
	require.NoError(t, store.AddJob(ctx, job))

	_, err := store.db.ExecContext(ctx, `DELETE FROM "scheduler_jobs"`)
	require.NoError(t, err)

	err = store.RemoveJob(ctx, job)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.Equal(t, []*domain.Job{job}, store.Jobs())
}

func TestStore_UpdateMissingJob(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	err := store.UpdateJob(ctx, reportJob("never-persisted"))
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	unknown := reportJob("unknown")
	unknown.ID = 999
	err = store.UpdateJob(ctx, unknown)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	removed := reportJob("removed")
	require.NoError(t, store.AddJob(ctx, removed))
	require.NoError(t, store.RemoveJob(ctx, removed))
	err = store.UpdateJob(ctx, removed)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	assert.Equal(t, []events.Type{events.JobAdded, events.JobRemoved}, store.recorder.Types())
}

func TestStore_UpdateJobRequiresNextRunTime(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	job := reportJob("unscheduled")
	require.NoError(t, store.AddJob(ctx, job))

	job.NextRunTime = time.Time{}
	job.Runs = 3
	err := store.UpdateJob(ctx, job)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, store.LoadJobs(ctx))
	require.Len(t, store.Jobs(), 1)
	assert.True(t, t0.Equal(store.Jobs()[0].NextRunTime))
	assert.Zero(t, store.Jobs()[0].Runs)
	assert.Equal(t, []events.Type{events.JobAdded}, store.recorder.Types())
}

func TestStore_PurgeJob(t *testing.T) {
	ctx := context.Background()
	url := sqliteURL(t)
	store := newSQLiteStore(t, url)

	keep := reportJob("keep")
	mirrored := reportJob("mirrored")
	broken := reportJob("broken")
	for _, j := range []*domain.Job{keep, mirrored, broken} {
		require.NoError(t, store.AddJob(ctx, j))
	}

	_, err := store.db.ExecContext(ctx,
		store.db.Rebind(`UPDATE "scheduler_jobs" SET "args" = ? WHERE "id" = ?`),
		[]byte("garbage"), broken.ID)
	require.NoError(t, err)

	// a fresh store cannot load the broken row, but can still delete it
	reader := newSQLiteStore(t, url)
	var loadErr *LoadError
	require.ErrorAs(t, reader.LoadJobs(ctx), &loadErr)
	assert.Equal(t, []int64{broken.ID}, loadErr.IDs())

	require.NoError(t, reader.PurgeJob(ctx, broken.ID))
	require.NoError(t, reader.LoadJobs(ctx))
	require.Len(t, reader.Jobs(), 2)

	// a mirrored job is dropped from the mirror too
	require.NoError(t, reader.PurgeJob(ctx, mirrored.ID))
	require.Len(t, reader.Jobs(), 1)
	assert.Equal(t, keep.ID, reader.Jobs()[0].ID)

	err = reader.PurgeJob(ctx, mirrored.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	err = reader.PurgeJob(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	assert.Equal(t, []events.Type{events.JobRemoved, events.JobRemoved}, reader.recorder.Types())
	assert.Equal(t, broken.ID, reader.recorder.Events[0].JobID)
	assert.Equal(t, "mirrored", reader.recorder.Events[1].Name)
}

func TestStore_UpdateLeavesWriteOnceColumns(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	job := reportJob("write-once")
	require.NoError(t, store.AddJob(ctx, job))

	var before jobRow
	require.NoError(t, store.db.GetContext(ctx, &before, `SELECT * FROM "scheduler_jobs"`))

	// in-memory edits to write-once fields are not persisted by a narrow update
	job.Args = []any{"tampered"}
	job.MisfireGraceTime = 999
	job.NextRunTime = t1
	job.Runs = 5
	require.NoError(t, store.UpdateJob(ctx, job))

	var after jobRow
	require.NoError(t, store.db.GetContext(ctx, &after, `SELECT * FROM "scheduler_jobs"`))

	assert.Equal(t, before.Trigger, after.Trigger)
	assert.Equal(t, before.FuncRef, after.FuncRef)
	assert.Equal(t, before.Args, after.Args)
	assert.Equal(t, before.Kwargs, after.Kwargs)
	assert.Equal(t, before.MisfireGraceTime, after.MisfireGraceTime)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, int64(5), after.Runs.Int64)
	assert.True(t, t1.Equal(after.NextRunTime))
}

func TestStore_AddJobValidation(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	tests := []struct {
		name    string
		mutate  func(j *domain.Job)
		wantErr error
	}{
		{name: "already persisted", mutate: func(j *domain.Job) { j.ID = 3 }},
		{name: "missing trigger", mutate: func(j *domain.Job) { j.Trigger = nil }},
		{name: "invalid trigger", mutate: func(j *domain.Job) { j.Trigger = &trigger.Cron{Expr: "every day"} }},
		{name: "missing func", mutate: func(j *domain.Job) { j.Func = nil }},
		{
			name: "anonymous func",
			mutate: func(j *domain.Job) {
				j.Func = func(context.Context, []any, map[string]any) error { return nil }
			},
		},
		{
			name:    "unregistered reference",
			mutate:  func(j *domain.Job) { j.Func = nil; j.FuncRef = "github.com/acme/jobs:Gone" },
			wantErr: domain.ErrUnresolvableReference,
		},
		{name: "negative misfire grace", mutate: func(j *domain.Job) { j.MisfireGraceTime = -1 }},
		{name: "missing next run time", mutate: func(j *domain.Job) { j.NextRunTime = time.Time{} }},
		{name: "non-positive max runs", mutate: func(j *domain.Job) { j.MaxRuns = intp(0) }},
		{name: "unencodable args", mutate: func(j *domain.Job) { j.Args = []any{make(chan int)} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := reportJob(tt.name)
			tt.mutate(job)
			id := job.ID

			err := store.AddJob(ctx, job)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, id, job.ID)
			assert.Empty(t, store.Jobs())
		})
	}

	require.NoError(t, store.LoadJobs(ctx))
	assert.Empty(t, store.Jobs())
	assert.Empty(t, store.recorder.Events)
}

func TestStore_LoadJobsAggregatesRowErrors(t *testing.T) {
	ctx := context.Background()
	url := sqliteURL(t)
	store := newSQLiteStore(t, url)

	good := reportJob("good")
	badBlob := reportJob("bad-blob")
	badRef := reportJob("bad-ref")
	badRef.Func = cleanup
	for _, j := range []*domain.Job{good, badBlob, badRef} {
		require.NoError(t, store.AddJob(ctx, j))
	}

	_, err := store.db.ExecContext(ctx,
		store.db.Rebind(`UPDATE "scheduler_jobs" SET "args" = ? WHERE "id" = ?`),
		[]byte{0xA5, 0x09, '[', ']'}, badBlob.ID)
	require.NoError(t, err)

	// a resolver that lost the cleanup function
	resolver := funcref.NewRegistry()
	_, err = resolver.Register(sendReport)
	require.NoError(t, err)

	reader := newSQLiteStore(t, url, func(o *Options) { o.Resolver = resolver })
	require.NoError(t, reader.AddJob(ctx, reportJob("mirror-only-before-load")))
	before := reader.Jobs()

	err = reader.LoadJobs(ctx)
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, []int64{badBlob.ID, badRef.ID}, loadErr.IDs())
	assert.ErrorIs(t, err, domain.ErrCodecVersionMismatch)
	assert.ErrorIs(t, err, domain.ErrUnresolvableReference)
	assert.Contains(t, err.Error(), "failed to load 2 stored job(s)")

	// the mirror is not partially replaced
	assert.Equal(t, before, reader.Jobs())
}

func TestStore_CodecVersions(t *testing.T) {
	ctx := context.Background()
	url := sqliteURL(t)

	yamlCodec, err := codec.ByName("yaml")
	require.NoError(t, err)
	writer := newSQLiteStore(t, url, func(o *Options) { o.Codec = yamlCodec })

	job := reportJob("yaml-written")
	require.NoError(t, writer.AddJob(ctx, job))

	var blob []byte
	require.NoError(t, writer.db.GetContext(ctx, &blob, `SELECT "args" FROM "scheduler_jobs"`))
	version, err := codec.PeekVersion(blob)
	require.NoError(t, err)
	assert.Equal(t, codec.VersionYAML, version)

	// a store writing JSON still reads YAML rows
	reader := newSQLiteStore(t, url)
	require.NoError(t, reader.LoadJobs(ctx))
	require.Len(t, reader.Jobs(), 1)
	assertStoredEqual(t, job, reader.Jobs()[0])
}

func TestNew_Configuration(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Options{Logger: discardLogger()})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	owner := newSQLiteStore(t, sqliteURL(t))
	_, err = New(ctx, Options{DB: owner.db, URL: owner.url, Logger: discardLogger()})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(ctx, Options{URL: "mysql://root@localhost/jobs", Logger: discardLogger()})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNew_ProvisioningIsIdempotent(t *testing.T) {
	ctx := context.Background()
	url := sqliteURL(t)

	first := newSQLiteStore(t, url, func(o *Options) { o.TableName = "nightly_jobs"; o.Schema = "main" })
	job := reportJob("survivor")
	require.NoError(t, first.AddJob(ctx, job))

	second := newSQLiteStore(t, url, func(o *Options) { o.TableName = "nightly_jobs"; o.Schema = "main" })
	require.NoError(t, second.LoadJobs(ctx))
	require.Len(t, second.Jobs(), 1)
	assert.Equal(t, job.ID, second.Jobs()[0].ID)

	assert.Contains(t, second.String(), "JobStore(url=sqlite3://")
	assert.Contains(t, second.String(), `"main"."nightly_jobs"`)
}

func TestStore_CallerOwnedConnection(t *testing.T) {
	ctx := context.Background()
	owner := newSQLiteStore(t, sqliteURL(t))

	shared, err := New(ctx, Options{DB: owner.db, Resolver: testRegistry(t), Logger: discardLogger()})
	require.NoError(t, err)
	assert.Contains(t, shared.String(), "caller-provided connection")

	require.NoError(t, shared.Close())
	require.NoError(t, shared.Ping(ctx))
	assert.Contains(t, shared.Stats(), "MaxOpenConns: 1")
}

func TestStore_Job(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t, sqliteURL(t))

	job := reportJob("lookup")
	require.NoError(t, store.AddJob(ctx, job))

	got, ok := store.Job(job.ID)
	require.True(t, ok)
	assert.Same(t, job, got)

	_, ok = store.Job(job.ID + 1)
	assert.False(t, ok)
}
