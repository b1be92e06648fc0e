package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rezkam/queuectl/internal/queue/job"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore is the Durable Store implementation backed by a local SQLite
// database. Every row mutation that must be atomic with respect to other
// worker processes runs inside a BEGIN IMMEDIATE transaction: SQLite has no
// SELECT ... FOR UPDATE SKIP LOCKED, so BEGIN IMMEDIATE's write-lock
// acquisition is what stands in for it — the second writer blocks (or, past
// _busy_timeout, fails) instead of racing the first to completion.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open creates (or reuses) a SQLite database at path, applying pending
// goose migrations, and returns a ready Store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// SQLite allows only one writer at a time; serialize through a single
	// connection so BEGIN IMMEDIATE contention is visible to callers via
	// _busy_timeout rather than spread across a pool that would each need
	// their own lock-wait loop.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	return goose.Up(db, "migrations")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// beginImmediate starts a write transaction. sql.LevelSerializable is the
// modernc.org/sqlite driver's hook for emitting BEGIN IMMEDIATE instead of
// the default deferred BEGIN.
func (s *SQLiteStore) beginImmediate(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

func (s *SQLiteStore) Insert(ctx context.Context, j *job.Job) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("store: begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, j.ID).Scan(&exists)
	switch {
	case err == nil:
		return ErrDuplicateID
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return fmt.Errorf("store: check duplicate: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, command, state, attempts, max_retries, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)`,
		j.ID, j.Command, job.Pending, j.MaxRetries, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, state, attempts, max_retries, created_at, updated_at,
		       locked_by, locked_at, next_retry_at, error, output
		FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get job: %w", err)
	}
	return j, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*job.Job, error) {
	query := `
		SELECT id, command, state, attempts, max_retries, created_at, updated_at,
		       locked_by, locked_at, next_retry_at, error, output
		FROM jobs`
	args := []any{}
	if filter.State != nil {
		query += ` WHERE state = ?`
		args = append(args, *filter.State)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CompareAndClaim picks one eligible job — pending, or failed with
// next_retry_at due — and atomically transitions it to processing under
// ownerID. Mirrors the teacher's claim-then-mark-running pair: a SELECT
// and an UPDATE run inside one BEGIN IMMEDIATE transaction, since SQLite
// has no SKIP LOCKED equivalent to chain against.
func (s *SQLiteStore) CompareAndClaim(ctx context.Context, ownerID string, now time.Time) (*job.Job, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, command, state, attempts, max_retries, created_at, updated_at,
		       locked_by, locked_at, next_retry_at, error, output
		FROM jobs
		WHERE (state = ? OR (state = ? AND next_retry_at <= ?))
		ORDER BY created_at ASC
		LIMIT 1`,
		job.Pending, job.Failed, now)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoneEligible
	}
	if err != nil {
		return nil, fmt.Errorf("store: select claimable: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, locked_by = ?, locked_at = ?, next_retry_at = NULL, updated_at = ?
		WHERE id = ?`,
		job.Processing, ownerID, now, now, j.ID)
	if err != nil {
		return nil, fmt.Errorf("store: mark processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit claim: %w", err)
	}

	j.State = job.Processing
	j.LockedBy = &ownerID
	j.LockedAt = &now
	j.NextRetryAt = nil
	j.UpdatedAt = now
	return j, nil
}

func (s *SQLiteStore) ConditionalUpdate(ctx context.Context, id string, expectedOwner string, fields UpdateFields) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("store: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentOwner sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT locked_by FROM jobs WHERE id = ?`, id).Scan(&currentOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: read owner: %w", err)
	}
	if !currentOwner.Valid || currentOwner.String != expectedOwner {
		return ErrLockLost
	}

	set := []string{"state = ?", "updated_at = ?"}
	args := []any{fields.State, time.Now().UTC()}

	if fields.ClearLocks {
		set = append(set, "locked_by = NULL", "locked_at = NULL")
	}
	if fields.Attempts != nil {
		set = append(set, "attempts = ?")
		args = append(args, *fields.Attempts)
	}
	if fields.Output != nil {
		set = append(set, "output = ?")
		args = append(args, *fields.Output)
	}
	switch {
	case fields.ClearError:
		set = append(set, "error = NULL")
	case fields.Error != nil:
		set = append(set, "error = ?")
		args = append(args, *fields.Error)
	}
	switch {
	case fields.ClearNextRetryAt:
		set = append(set, "next_retry_at = NULL")
	case fields.NextRetryAt != nil:
		set = append(set, "next_retry_at = ?")
		args = append(args, *fields.NextRetryAt)
	}

	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE id = ? AND locked_by = ?`, joinSet(set))
	args = append(args, id, expectedOwner)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: apply update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrLockLost
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit update: %w", err)
	}
	return nil
}

func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, limit int) ([]*job.DeadLetterJob, error) {
	query := `
		SELECT id, command, attempts, max_retries, error, updated_at
		FROM jobs WHERE state = ? ORDER BY updated_at DESC`
	args := []any{job.Dead}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list dlq: %w", err)
	}
	defer rows.Close()

	var out []*job.DeadLetterJob
	for rows.Next() {
		var d job.DeadLetterJob
		var errCol sql.NullString
		if err := rows.Scan(&d.ID, &d.Command, &d.Attempts, &d.MaxRetries, &errCol, &d.DeadAt); err != nil {
			return nil, fmt.Errorf("store: scan dlq row: %w", err)
		}
		if errCol.Valid {
			v := errCol.String
			d.Error = &v
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ResetForRetry(ctx context.Context, id string) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("store: begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state job.State
	err = tx.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: read state: %w", err)
	}
	if state != job.Dead {
		return ErrNotInDLQ
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, attempts = 0, locked_by = NULL, locked_at = NULL,
		    next_retry_at = NULL, error = NULL, output = NULL, updated_at = ?
		WHERE id = ?`,
		job.Pending, now, id)
	if err != nil {
		return fmt.Errorf("store: reset job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit reset: %w", err)
	}
	return nil
}

// ReapStale reclaims jobs whose lock has outlived the stale-lock threshold.
// A reclaimed job always goes back to failed with an immediate retry —
// attempts is left untouched, since a dead worker's crash is not the job's
// fault and must not count against its retry budget. This is the only
// transition the stale-lock reap path takes; unlike a worker-reported
// failure it never forks to dead.
func (s *SQLiteStore) ReapStale(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin reap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM jobs
		WHERE state = ? AND locked_at <= ?`, job.Processing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: select stale: %w", err)
	}

	var staleIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan stale: %w", err)
		}
		staleIDs = append(staleIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	const reapErr = "stale lock reclaimed by reaper"
	for _, id := range staleIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET state = ?, locked_by = NULL, locked_at = NULL,
			    next_retry_at = ?, error = ?, updated_at = ?
			WHERE id = ?`,
			job.Failed, now, reapErr, now, id); err != nil {
			return 0, fmt.Errorf("store: reclaim job %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit reap: %w", err)
	}

	if len(staleIDs) > 0 {
		slog.WarnContext(ctx, "reaper reclaimed stale jobs", "count", len(staleIDs), "cutoff", cutoff)
	}
	return len(staleIDs), nil
}

func (s *SQLiteStore) CountByState(ctx context.Context) (map[job.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("store: count by state: %w", err)
	}
	defer rows.Close()

	counts := map[job.State]int{}
	for rows.Next() {
		var st job.State
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("store: scan count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Heartbeat(ctx context.Context, workerID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (worker_id, last_heartbeat) VALUES (?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET last_heartbeat = excluded.last_heartbeat`,
		workerID, now)
	if err != nil {
		return fmt.Errorf("store: heartbeat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountActiveWorkers(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers WHERE last_heartbeat >= ?`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count active workers: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*job.Job, error) {
	var j job.Job
	var lockedBy, errCol, output sql.NullString
	var lockedAt, nextRetryAt sql.NullTime

	err := row.Scan(
		&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries, &j.CreatedAt, &j.UpdatedAt,
		&lockedBy, &lockedAt, &nextRetryAt, &errCol, &output)
	if err != nil {
		return nil, err
	}

	if lockedBy.Valid {
		v := lockedBy.String
		j.LockedBy = &v
	}
	if lockedAt.Valid {
		v := lockedAt.Time
		j.LockedAt = &v
	}
	if nextRetryAt.Valid {
		v := nextRetryAt.Time
		j.NextRetryAt = &v
	}
	if errCol.Valid {
		v := errCol.String
		j.Error = &v
	}
	if output.Valid {
		v := output.String
		j.Output = &v
	}
	return &j, nil
}
