// Package store persists attendance reports in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/classtrack/rollcall"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store manages the PostgreSQL connection pool holding attendance records.
// It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Record is one persisted user entry of an attendance report.
type Record struct {
	ReportID  string
	MeetingID string
	UserID    string
	rollcall.UserReport
	CreatedAt time.Time
}

// New opens a connection pool to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS attendance (
			id BIGSERIAL PRIMARY KEY,
			report_id UUID NOT NULL,
			meeting_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			positive INT NOT NULL,
			negative INT NOT NULL,
			semipositive INT NOT NULL,
			previous_label TEXT NOT NULL,
			frames_processed INT NOT NULL,
			frames_skipped INT NOT NULL,
			final_percent DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (meeting_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS attendance_meeting_id_idx ON attendance (meeting_id);
	`)
	return err
}

// Close waits for the acquired connections to be released and closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveReport writes every user entry of the report. A later report for the
// same meeting and user replaces the earlier row.
func (s *Store) SaveReport(ctx context.Context, r *rollcall.AttendanceReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, userID := range r.UserIDs() {
		u := r.Users[userID]
		_, err := tx.Exec(ctx, `
			INSERT INTO attendance (report_id, meeting_id, user_id, positive, negative, semipositive,
				previous_label, frames_processed, frames_skipped, final_percent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (meeting_id, user_id) DO UPDATE SET
				report_id = EXCLUDED.report_id,
				positive = EXCLUDED.positive,
				negative = EXCLUDED.negative,
				semipositive = EXCLUDED.semipositive,
				previous_label = EXCLUDED.previous_label,
				frames_processed = EXCLUDED.frames_processed,
				frames_skipped = EXCLUDED.frames_skipped,
				final_percent = EXCLUDED.final_percent,
				created_at = EXCLUDED.created_at
		`, r.ID.String(), r.MeetingID, userID, u.Positive, u.Negative, u.SemiPositive,
			u.PreviousLabel.String(), u.FramesProcessed, u.FramesSkipped, u.FinalPercent, r.GeneratedAt)
		if err != nil {
			return fmt.Errorf("failed to save attendance of %s: %w", userID, err)
		}
	}

	return tx.Commit(ctx)
}

// MeetingAttendance returns the stored records of a meeting ordered by user.
func (s *Store) MeetingAttendance(ctx context.Context, meetingID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT report_id::text, meeting_id, user_id, positive, negative, semipositive,
			previous_label, frames_processed, frames_skipped, final_percent, created_at
		FROM attendance WHERE meeting_id = $1 ORDER BY user_id
	`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec   Record
			label string
		)
		if err := rows.Scan(&rec.ReportID, &rec.MeetingID, &rec.UserID,
			&rec.Positive, &rec.Negative, &rec.SemiPositive, &label,
			&rec.FramesProcessed, &rec.FramesSkipped, &rec.FinalPercent, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.PreviousLabel, err = rollcall.ParseLabel(label); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Reset drops the attendance table. The next New recreates it.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS attendance CASCADE;`)
	return err
}
