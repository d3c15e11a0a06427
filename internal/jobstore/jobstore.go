// Package jobstore persists JobRecords in sqlite so a terminal job's result
// survives for later polling without leaning on process memory. It is
// modeled on the teacher's internal/database connection-profile pattern
// (WAL journal mode, a single busy-timeout pragma) narrowed to the one
// table this service needs, reworked from the teacher's multi-database
// architecture into a single cache-profile database, since job records are
// ephemeral by design (evicted on a TTL sweep, not an audit trail).
package jobstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

// Store persists JobRecords in a single sqlite database.
type Store struct {
	conn *sql.DB
}

// Open creates (or reopens) the job-records database at path, creating
// parent directories and the schema as needed.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve job store path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create job store directory: %w", err)
	}

	connStr := absPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	conn.SetMaxOpenConns(1) // sqlite + WAL: one writer is simplest and sufficient at this volume.

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create job_records schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS job_records (
	job_id       TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	started_at   TEXT,
	completed_at TEXT,
	result_json  TEXT,
	error_json   TEXT
);
`

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Create inserts a new PENDING JobRecord for jobID.
func (s *Store) Create(jobID string, submittedAt time.Time) error {
	_, err := s.conn.Exec(
		`INSERT INTO job_records (job_id, status, submitted_at) VALUES (?, ?, ?)`,
		jobID, string(domain.JobPending), submittedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Get returns the record for jobID, or nil if unknown.
func (s *Store) Get(jobID string) (*domain.JobRecord, error) {
	row := s.conn.QueryRow(
		`SELECT job_id, status, submitted_at, started_at, completed_at, result_json, error_json
		 FROM job_records WHERE job_id = ?`, jobID)
	return scanRecord(row)
}

// SetRunning transitions jobID to RUNNING if it is still PENDING. Returns
// false if no row was updated (already cancelled, or unknown).
func (s *Store) SetRunning(jobID string, startedAt time.Time) (bool, error) {
	res, err := s.conn.Exec(
		`UPDATE job_records SET status = ?, started_at = ? WHERE job_id = ? AND status = ?`,
		string(domain.JobRunning), startedAt.Format(time.RFC3339Nano), jobID, string(domain.JobPending),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetCompleted transitions jobID to COMPLETED, persisting result as JSON.
func (s *Store) SetCompleted(jobID string, result *domain.BacktestResult, completedAt time.Time) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal backtest result: %w", err)
	}
	_, err = s.conn.Exec(
		`UPDATE job_records SET status = ?, completed_at = ?, result_json = ? WHERE job_id = ?`,
		string(domain.JobCompleted), completedAt.Format(time.RFC3339Nano), string(blob), jobID,
	)
	return err
}

// SetFailed transitions jobID to FAILED, persisting the structured error.
func (s *Store) SetFailed(jobID string, jobErr *domain.JobError, completedAt time.Time) error {
	blob, err := json.Marshal(jobErr)
	if err != nil {
		return fmt.Errorf("marshal job error: %w", err)
	}
	_, err = s.conn.Exec(
		`UPDATE job_records SET status = ?, completed_at = ?, error_json = ? WHERE job_id = ?`,
		string(domain.JobFailed), completedAt.Format(time.RFC3339Nano), string(blob), jobID,
	)
	return err
}

// CancelResult reports what Cancel found.
type CancelResult int

const (
	CancelOK CancelResult = iota
	CancelNotFound
	CancelConflict
)

// Cancel marks jobID CANCELLED if it is currently PENDING.
func (s *Store) Cancel(jobID string) (CancelResult, error) {
	rec, err := s.Get(jobID)
	if err != nil {
		return CancelNotFound, err
	}
	if rec == nil {
		return CancelNotFound, nil
	}
	if rec.Status != domain.JobPending {
		return CancelConflict, nil
	}
	res, err := s.conn.Exec(
		`UPDATE job_records SET status = ? WHERE job_id = ? AND status = ?`,
		string(domain.JobCancelled), jobID, string(domain.JobPending),
	)
	if err != nil {
		return CancelNotFound, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CancelNotFound, err
	}
	if n == 0 {
		return CancelConflict, nil
	}
	return CancelOK, nil
}

// Sweep deletes terminal (COMPLETED/FAILED/CANCELLED) records older than
// olderThan, backing the maintenance package's daily TTL job. A record's age
// is taken from completed_at, or from submitted_at for a cancelled record,
// which never gets a completed_at.
func (s *Store) Sweep(olderThan time.Time) (int64, error) {
	res, err := s.conn.Exec(
		`DELETE FROM job_records
		 WHERE status IN (?, ?, ?) AND COALESCE(completed_at, submitted_at) < ?`,
		string(domain.JobCompleted), string(domain.JobFailed), string(domain.JobCancelled),
		olderThan.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecord(row *sql.Row) (*domain.JobRecord, error) {
	var (
		jobID, status, submittedAt     string
		startedAt, completedAt         sql.NullString
		resultJSON, errorJSON          sql.NullString
	)
	if err := row.Scan(&jobID, &status, &submittedAt, &startedAt, &completedAt, &resultJSON, &errorJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rec := &domain.JobRecord{
		JobID:  jobID,
		Status: domain.JobStatus(status),
	}
	var perr error
	if rec.SubmittedAt, perr = time.Parse(time.RFC3339Nano, submittedAt); perr != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", perr)
	}
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		rec.CompletedAt = &t
	}
	if resultJSON.Valid {
		var result domain.BacktestResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		rec.Result = &result
	}
	if errorJSON.Valid {
		var jobErr domain.JobError
		if err := json.Unmarshal([]byte(errorJSON.String), &jobErr); err != nil {
			return nil, fmt.Errorf("unmarshal job error: %w", err)
		}
		rec.Error = &jobErr
	}
	return rec, nil
}
