package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-jet/jet/v2/sqlite"

	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/storage/sqlite/schema"
)

type jobRow struct {
	ID             int64
	Kind           string
	Priority       int32
	LibraryID      int64
	Payload        string
	DedupeKey      string
	Status         string
	Attempt        int32
	ScheduledAt    time.Time
	EnqueuedAt     time.Time
	LeaseOwner     *string
	LeaseExpiresAt *time.Time
	CorrelationID  string
	LastError      *string
}

func (r jobRow) toDomain() queue.Job {
	job := queue.Job{
		ID:            r.ID,
		Kind:          queue.Kind(r.Kind),
		Priority:      queue.Priority(r.Priority),
		LibraryID:     r.LibraryID,
		Payload:       []byte(r.Payload),
		DedupeKey:     r.DedupeKey,
		Status:        queue.Status(r.Status),
		Attempt:       int(r.Attempt),
		ScheduledAt:   r.ScheduledAt,
		EnqueuedAt:    r.EnqueuedAt,
		CorrelationID: r.CorrelationID,
	}
	if r.LeaseOwner != nil {
		job.LeaseOwner = *r.LeaseOwner
	}
	if r.LeaseExpiresAt != nil {
		job.LeaseExpiresAt = *r.LeaseExpiresAt
	}
	if r.LastError != nil {
		job.LastError = *r.LastError
	}
	return job
}

// InsertJob creates the job row, or reports a merge when an active job
// already holds the dedupe key. The check and insert share the writer lock
// so two concurrent enqueues of the same key cannot both create rows; the
// partial unique index on (dedupe_key) is the safety net under it.
func (s *SQLite) InsertJob(ctx context.Context, job queue.Job) (queue.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queue.InsertResult{}, err
	}
	defer tx.Rollback()

	res, err := s.insertJobTx(ctx, tx, job)
	if err != nil {
		return queue.InsertResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return queue.InsertResult{}, err
	}
	return res, nil
}

// InsertJobs applies InsertJob semantics to the whole batch in one
// transaction.
func (s *SQLite) InsertJobs(ctx context.Context, jobs []queue.Job) ([]queue.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	results := make([]queue.InsertResult, 0, len(jobs))
	for _, job := range jobs {
		res, err := s.insertJobTx(ctx, tx, job)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLite) insertJobTx(ctx context.Context, tx *sql.Tx, job queue.Job) (queue.InsertResult, error) {
	existing, err := s.findActiveByDedupeKeyTx(ctx, tx, job.DedupeKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return queue.InsertResult{}, err
	}
	if err == nil {
		return queue.InsertResult{Job: existing, Merged: true}, nil
	}

	row := jobRow{
		Kind:          string(job.Kind),
		Priority:      int32(job.Priority),
		LibraryID:     job.LibraryID,
		Payload:       string(job.Payload),
		DedupeKey:     job.DedupeKey,
		Status:        string(queue.StatusQueued),
		ScheduledAt:   job.ScheduledAt,
		EnqueuedAt:    job.EnqueuedAt,
		CorrelationID: job.CorrelationID,
	}

	stmt := schema.JobTable.
		INSERT(schema.JobAllColumns.Except(schema.JobIDCol, schema.JobLeaseOwnerCol, schema.JobLeaseExpiresCol, schema.JobLastErrorCol)).
		MODEL(row)

	result, err := stmt.ExecContext(ctx, tx)
	if err != nil {
		return queue.InsertResult{}, fmt.Errorf("insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return queue.InsertResult{}, err
	}

	if err := s.recordTransitionTx(ctx, tx, id, "", queue.StatusQueued, ""); err != nil {
		return queue.InsertResult{}, err
	}

	inserted := job
	inserted.ID = id
	inserted.Status = queue.StatusQueued
	return queue.InsertResult{Job: inserted}, nil
}

func (s *SQLite) findActiveByDedupeKeyTx(ctx context.Context, tx *sql.Tx, dedupeKey string) (queue.Job, error) {
	stmt := sqlite.SELECT(schema.JobAllColumns).
		FROM(schema.JobTable).
		WHERE(schema.JobDedupeKeyCol.EQ(sqlite.String(dedupeKey)).
			AND(schema.JobStatusCol.IN(sqlite.String(string(queue.StatusQueued)), sqlite.String(string(queue.StatusLeased)))))

	var row jobRow
	err := stmt.QueryContext(ctx, tx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Job{}, storage.ErrNotFound
	}
	if err != nil {
		return queue.Job{}, err
	}
	return row.toDomain(), nil
}

// LeaseNext claims the next ready job of kind. Ordering is priority, then
// enqueue time, then job id, matching the tie-break rule exactly.
func (s *SQLite) LeaseNext(ctx context.Context, kind queue.Kind, owner string, ttl time.Duration, now time.Time, sel *queue.Selector) (*queue.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cond := schema.JobKindCol.EQ(sqlite.String(string(kind))).
		AND(schema.JobStatusCol.EQ(sqlite.String(string(queue.StatusQueued)))).
		AND(schema.JobScheduledAtCol.LT_EQ(tsExp(now)))
	if sel != nil && sel.LibraryID != 0 {
		cond = cond.AND(schema.JobLibraryIDCol.EQ(sqlite.Int64(sel.LibraryID)))
	}

	stmt := sqlite.SELECT(schema.JobAllColumns).
		FROM(schema.JobTable).
		WHERE(cond).
		ORDER_BY(schema.JobPriorityCol.ASC(), schema.JobEnqueuedAtCol.ASC(), schema.JobIDCol.ASC()).
		LIMIT(1)

	var row jobRow
	err = stmt.QueryContext(ctx, tx, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(ttl)
	update := schema.JobTable.
		UPDATE(schema.JobStatusCol, schema.JobLeaseOwnerCol, schema.JobLeaseExpiresCol).
		SET(sqlite.String(string(queue.StatusLeased)), sqlite.String(owner), tsExp(expiresAt)).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(row.ID)).
			AND(schema.JobStatusCol.EQ(sqlite.String(string(queue.StatusQueued)))))

	if _, err := update.ExecContext(ctx, tx); err != nil {
		return nil, fmt.Errorf("lease job: %w", err)
	}

	if err := s.recordTransitionTx(ctx, tx, row.ID, queue.StatusQueued, queue.StatusLeased, ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job := row.toDomain()
	job.Status = queue.StatusLeased
	job.LeaseOwner = owner
	job.LeaseExpiresAt = expiresAt
	return &queue.Lease{Job: job, Owner: owner, ExpiresAt: expiresAt}, nil
}

// RenewLease extends owner's claim; a mismatched owner means the lease
// already expired and moved on, surfaced as a conflict.
func (s *SQLite) RenewLease(ctx context.Context, jobID int64, owner string, ttl time.Duration, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := schema.JobTable.
		UPDATE(schema.JobLeaseExpiresCol).
		SET(tsExp(now.Add(ttl))).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)).
			AND(schema.JobStatusCol.EQ(sqlite.String(string(queue.StatusLeased)))).
			AND(schema.JobLeaseOwnerCol.EQ(sqlite.String(owner))))

	result, err := stmt.ExecContext(ctx, s.db)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (s *SQLite) CompleteJob(ctx context.Context, jobID int64, owner string) error {
	return s.transitionLeasedJob(ctx, jobID, owner, queue.StatusCompleted, "")
}

// RequeueJob returns a leased job to queued for another attempt at
// scheduledAt.
func (s *SQLite) RequeueJob(ctx context.Context, jobID int64, attempt int, scheduledAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := schema.JobTable.
		UPDATE(schema.JobStatusCol, schema.JobAttemptCol, schema.JobScheduledAtCol, schema.JobLastErrorCol, schema.JobLeaseOwnerCol, schema.JobLeaseExpiresCol).
		SET(
			sqlite.String(string(queue.StatusQueued)),
			sqlite.Int(int64(attempt)),
			tsExp(scheduledAt),
			sqlite.String(lastError),
			sqlite.NULL,
			sqlite.NULL,
		).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)).
			AND(schema.JobStatusCol.EQ(sqlite.String(string(queue.StatusLeased)))))

	result, err := stmt.ExecContext(ctx, tx)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrConflict
	}

	if err := s.recordTransitionTx(ctx, tx, jobID, queue.StatusLeased, queue.StatusQueued, lastError); err != nil {
		return err
	}
	return tx.Commit()
}

// DeadLetterJob copies the job into the dead-letter table and marks the
// row terminally failed, in one transaction.
func (s *SQLite) DeadLetterJob(ctx context.Context, jobID int64, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := sqlite.SELECT(schema.JobAllColumns).
		FROM(schema.JobTable).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)))

	var row jobRow
	if err := stmt.QueryContext(ctx, tx, &row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return err
	}

	fromStatus := queue.Status(row.Status)

	update := schema.JobTable.
		UPDATE(schema.JobStatusCol, schema.JobAttemptCol, schema.JobLastErrorCol, schema.JobLeaseOwnerCol, schema.JobLeaseExpiresCol).
		SET(
			sqlite.String(string(queue.StatusDeadLettered)),
			sqlite.Int(int64(row.Attempt)+1),
			sqlite.String(lastError),
			sqlite.NULL,
			sqlite.NULL,
		).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)))

	if _, err := update.ExecContext(ctx, tx); err != nil {
		return fmt.Errorf("mark job dead-lettered: %w", err)
	}

	deadRow := struct {
		JobID   int64
		Kind    string
		Payload string
		Error   string
		Attempt int32
	}{
		JobID:   row.ID,
		Kind:    row.Kind,
		Payload: row.Payload,
		Error:   lastError,
		Attempt: row.Attempt + 1,
	}

	insert := schema.DeadLetterTable.
		INSERT(schema.DeadLetterJobIDCol, schema.DeadLetterKindCol, schema.DeadLetterPayloadCol, schema.DeadLetterErrorCol, schema.DeadLetterAttemptCol).
		MODEL(deadRow)

	if _, err := insert.ExecContext(ctx, tx); err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	if err := s.recordTransitionTx(ctx, tx, jobID, fromStatus, queue.StatusDeadLettered, lastError); err != nil {
		return err
	}
	return tx.Commit()
}

// ExpireLeases requeues every job whose lease expired before now,
// incrementing the attempt count, and returns the affected jobs.
func (s *SQLite) ExpireLeases(ctx context.Context, now time.Time) ([]queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt := sqlite.SELECT(schema.JobAllColumns).
		FROM(schema.JobTable).
		WHERE(schema.JobStatusCol.EQ(sqlite.String(string(queue.StatusLeased))).
			AND(schema.JobLeaseExpiresCol.LT(tsExp(now))))

	var rows []jobRow
	if err := stmt.QueryContext(ctx, tx, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	expired := make([]queue.Job, 0, len(rows))
	for _, row := range rows {
		update := schema.JobTable.
			UPDATE(schema.JobStatusCol, schema.JobAttemptCol, schema.JobLeaseOwnerCol, schema.JobLeaseExpiresCol).
			SET(
				sqlite.String(string(queue.StatusQueued)),
				sqlite.Int(int64(row.Attempt)+1),
				sqlite.NULL,
				sqlite.NULL,
			).
			WHERE(schema.JobIDCol.EQ(sqlite.Int64(row.ID)))

		if _, err := update.ExecContext(ctx, tx); err != nil {
			return nil, fmt.Errorf("expire lease: %w", err)
		}

		if err := s.recordTransitionTx(ctx, tx, row.ID, queue.StatusLeased, queue.StatusQueued, "lease expired"); err != nil {
			return nil, err
		}

		job := row.toDomain()
		job.Status = queue.StatusQueued
		job.Attempt = int(row.Attempt) + 1
		job.LeaseOwner = ""
		job.LeaseExpiresAt = time.Time{}
		expired = append(expired, job)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *SQLite) GetJob(ctx context.Context, jobID int64) (queue.Job, error) {
	stmt := sqlite.SELECT(schema.JobAllColumns).
		FROM(schema.JobTable).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)))

	var row jobRow
	err := stmt.QueryContext(ctx, s.db, &row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Job{}, storage.ErrNotFound
	}
	if err != nil {
		return queue.Job{}, err
	}
	return row.toDomain(), nil
}

func (s *SQLite) ListDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	stmt := sqlite.SELECT(schema.DeadLetterAllColumns).
		FROM(schema.DeadLetterTable).
		ORDER_BY(schema.DeadLetterDeadLetteredAtCol.DESC()).
		LIMIT(int64(limit))

	var rows []struct {
		JobID          int64
		Kind           string
		Payload        string
		Error          string
		Attempt        int32
		DeadLetteredAt time.Time
	}
	if err := stmt.QueryContext(ctx, s.db, &rows); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	letters := make([]queue.DeadLetter, 0, len(rows))
	for _, row := range rows {
		letters = append(letters, queue.DeadLetter{
			JobID:          row.JobID,
			Kind:           queue.Kind(row.Kind),
			Payload:        []byte(row.Payload),
			Error:          row.Error,
			Attempt:        int(row.Attempt),
			DeadLetteredAt: row.DeadLetteredAt,
		})
	}
	return letters, nil
}

// SetJobCorrelation backfills the minted correlation id onto the row.
func (s *SQLite) SetJobCorrelation(ctx context.Context, jobID int64, corrID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt := schema.JobTable.
		UPDATE(schema.JobCorrelationIDCol).
		SET(sqlite.String(corrID)).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)))

	_, err := stmt.ExecContext(ctx, s.db)
	return err
}

func (s *SQLite) transitionLeasedJob(ctx context.Context, jobID int64, owner string, to queue.Status, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := schema.JobTable.
		UPDATE(schema.JobStatusCol, schema.JobLeaseOwnerCol, schema.JobLeaseExpiresCol).
		SET(sqlite.String(string(to)), sqlite.NULL, sqlite.NULL).
		WHERE(schema.JobIDCol.EQ(sqlite.Int64(jobID)).
			AND(schema.JobStatusCol.EQ(sqlite.String(string(queue.StatusLeased)))).
			AND(schema.JobLeaseOwnerCol.EQ(sqlite.String(owner))))

	result, err := stmt.ExecContext(ctx, tx)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrConflict
	}

	if err := s.recordTransitionTx(ctx, tx, jobID, queue.StatusLeased, to, lastError); err != nil {
		return err
	}
	return tx.Commit()
}

// recordTransitionTx appends one row of lifecycle history, the generalized
// form of per-entity transition tables.
func (s *SQLite) recordTransitionTx(ctx context.Context, tx *sql.Tx, jobID int64, from, to queue.Status, transitionErr string) error {
	row := struct {
		JobID      int64
		FromStatus string
		ToStatus   string
		Error      *string
	}{
		JobID:      jobID,
		FromStatus: string(from),
		ToStatus:   string(to),
	}
	if transitionErr != "" {
		row.Error = &transitionErr
	}

	stmt := schema.JobTransitionTable.
		INSERT(schema.JobTransitionJobIDCol, schema.JobTransitionFromCol, schema.JobTransitionToCol, schema.JobTransitionErrorCol).
		MODEL(row)

	if _, err := stmt.ExecContext(ctx, tx); err != nil {
		return fmt.Errorf("record job transition: %w", err)
	}
	return nil
}
