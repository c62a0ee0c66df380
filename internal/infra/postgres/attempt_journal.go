package postgres

import (
	"context"
	"fmt"

	"quizflow-client/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptJournal appends submission attempts to the submission_attempts table.
type AttemptJournal struct {
	pool *pgxpool.Pool
}

func NewAttemptJournal(pool *pgxpool.Pool) *AttemptJournal {
	return &AttemptJournal{pool: pool}
}

func (j *AttemptJournal) RecordAttempt(ctx context.Context, a domain.SubmissionAttempt) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO submission_attempts (submission_id, quiz_id, attempt, status, error, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.SubmissionID, a.QuizID, a.Attempt, string(a.Status), a.Error, a.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// History returns the journal of one submission in recording order.
func (j *AttemptJournal) History(ctx context.Context, submissionID string) ([]domain.SubmissionAttempt, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT submission_id, quiz_id, attempt, status, error, recorded_at
		 FROM submission_attempts WHERE submission_id=$1 ORDER BY id`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmissionAttempt
	for rows.Next() {
		var a domain.SubmissionAttempt
		var status string
		if err := rows.Scan(&a.SubmissionID, &a.QuizID, &a.Attempt, &status, &a.Error, &a.At); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Status = domain.AttemptStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
