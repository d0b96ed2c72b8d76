package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("ledger: not found")

// ErrInvalidTransition indicates a status update that would move a job
// backward or out of a terminal state.
var ErrInvalidTransition = errors.New("ledger: invalid status transition")

// allowedFrom lists which statuses may precede each target status.
var allowedFrom = map[string][]string{
	StatusProcessing: {StatusPending},
	StatusCompleted:  {StatusProcessing},
	StatusFailed:     {StatusPending, StatusProcessing},
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// AddTrack registers a track, keyed by content hash. Re-adding the same
// hash is a no-op that returns the existing row, so repeated scans of the
// same library never duplicate tracks.
func (s *Store) AddTrack(ctx context.Context, track Track) (*Track, error) {
	if track.ContentHash == "" {
		return nil, errors.New("ledger: content hash required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tracks (file_path, content_hash, artist, title, genre, bpm, key, file_size, added_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		track.FilePath, track.ContentHash, track.Artist, track.Title,
		track.Genre, track.BPM, track.Key, track.FileSize, timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert track: %w", err)
	}
	return s.TrackByHash(ctx, track.ContentHash)
}

// TrackByHash looks up a track by its content hash.
func (s *Store) TrackByHash(ctx context.Context, contentHash string) (*Track, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, content_hash, artist, title, genre, bpm, key, file_size, added_at
         FROM tracks WHERE content_hash = ?`, contentHash)
	return scanTrack(row)
}

// TrackByID looks up a track by row id.
func (s *Store) TrackByID(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, content_hash, artist, title, genre, bpm, key, file_size, added_at
         FROM tracks WHERE id = ?`, id)
	return scanTrack(row)
}

func scanTrack(row *sql.Row) (*Track, error) {
	var track Track
	var addedAt string
	err := row.Scan(&track.ID, &track.FilePath, &track.ContentHash, &track.Artist,
		&track.Title, &track.Genre, &track.BPM, &track.Key, &track.FileSize, &addedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan track: %w", err)
	}
	track.AddedAt = parseTime(addedAt)
	return &track, nil
}

// CreateJob inserts a pending job for a track.
func (s *Store) CreateJob(ctx context.Context, trackID int64, engineName string) (*Job, error) {
	now := timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (track_id, engine, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		trackID, engineName, StatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.JobByID(ctx, id)
}

// UpdateJobStatus advances a job to the given status. Backward moves and
// edits to terminal jobs fail with ErrInvalidTransition. completed_at and
// elapsed_seconds are set only when the job reaches a terminal status.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID int64, status, errorMessage, outputDir string, elapsed time.Duration) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, status)
	}

	query := `UPDATE jobs SET status = ?, error_message = ?, updated_at = ?`
	args := []any{status, errorMessage, timestamp()}
	if outputDir != "" {
		query += `, output_dir = ?`
		args = append(args, outputDir)
	}
	if IsTerminal(status) {
		query += `, completed_at = ?, elapsed_seconds = ?`
		args = append(args, timestamp(), elapsed.Seconds())
	}
	query += ` WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	args = append(args, jobID)
	for _, f := range from {
		args = append(args, f)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, lookupErr := s.JobByID(ctx, jobID)
		if lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, status)
	}
	return nil
}

func placeholders(n int) string {
	out := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

// JobByID looks up a job by row id.
func (s *Store) JobByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, engine, status, error_message, output_dir, elapsed_seconds, created_at, updated_at, completed_at
         FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// LatestJobForTrack returns the most recently created job for a track, or
// ErrNotFound when the track has never been attempted.
func (s *Store) LatestJobForTrack(ctx context.Context, trackID int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, engine, status, error_message, output_dir, elapsed_seconds, created_at, updated_at, completed_at
         FROM jobs WHERE track_id = ? ORDER BY id DESC LIMIT 1`, trackID)
	return scanJob(row)
}

// HasSuccessfulJob reports whether any completed job exists for the track.
func (s *Store) HasSuccessfulJob(ctx context.Context, trackID int64) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE track_id = ? AND status = ?`,
		trackID, StatusCompleted).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count completed jobs: %w", err)
	}
	return count > 0, nil
}

// JobsForTrack returns every job for a track, oldest first.
func (s *Store) JobsForTrack(ctx context.Context, trackID int64) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, track_id, engine, status, error_message, output_dir, elapsed_seconds, created_at, updated_at, completed_at
         FROM jobs WHERE track_id = ? ORDER BY id ASC`, trackID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobFrom(scanner rowScanner) (*Job, error) {
	var job Job
	var createdAt, updatedAt string
	var completedAt sql.NullString
	err := scanner.Scan(&job.ID, &job.TrackID, &job.Engine, &job.Status,
		&job.ErrorMessage, &job.OutputDir, &job.ElapsedSeconds, &createdAt, &updatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		job.CompletedAt = parseTime(completedAt.String)
	}
	return &job, nil
}

func scanJob(row *sql.Row) (*Job, error) { return scanJobFrom(row) }

func scanJobRows(rows *sql.Rows) (*Job, error) { return scanJobFrom(rows) }

// AddQualityScore records one stem's quality measurement for a job.
func (s *Store) AddQualityScore(ctx context.Context, jobID int64, stemName string, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quality_scores (job_id, stem_name, score, created_at) VALUES (?, ?, ?, ?)`,
		jobID, stemName, score, timestamp())
	if err != nil {
		return fmt.Errorf("insert quality score: %w", err)
	}
	return nil
}

// QualityScores returns the recorded scores for a job keyed by stem name.
func (s *Store) QualityScores(ctx context.Context, jobID int64) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stem_name, score FROM quality_scores WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query quality scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var name string
		var score float64
		if err := rows.Scan(&name, &score); err != nil {
			return nil, fmt.Errorf("scan quality score: %w", err)
		}
		scores[name] = score
	}
	return scores, rows.Err()
}

// AverageQuality returns the mean recorded score per stem name across all
// jobs in the ledger.
func (s *Store) AverageQuality(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stem_name, AVG(score) FROM quality_scores GROUP BY stem_name`)
	if err != nil {
		return nil, fmt.Errorf("query average quality: %w", err)
	}
	defer rows.Close()

	averages := make(map[string]float64)
	for rows.Next() {
		var name string
		var avg float64
		if err := rows.Scan(&name, &avg); err != nil {
			return nil, fmt.Errorf("scan average quality: %w", err)
		}
		averages[name] = avg
	}
	return averages, rows.Err()
}

// Stats summarizes ledger contents for status reporting.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tracks`).Scan(&stats.Tracks); err != nil {
		return Stats{}, fmt.Errorf("count tracks: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan job counts: %w", err)
		}
		stats.Jobs += count
		switch status {
		case StatusCompleted:
			stats.CompletedJobs = count
		case StatusFailed:
			stats.FailedJobs = count
		case StatusPending, StatusProcessing:
			stats.PendingJobs += count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	averages, err := s.AverageQuality(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.AverageScores = averages
	return stats, nil
}
