package gallery

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// GenerationJob is the persisted record of one submitted prediction.
type GenerationJob struct {
	ID           int64     `json:"id"`
	PredictionID string    `json:"predictionId"`
	Prompt       string    `json:"prompt"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JobStore keeps prediction job records in Postgres.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(connStr string) (*JobStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &JobStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *JobStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS generation_jobs (
			id BIGSERIAL PRIMARY KEY,
			prediction_id TEXT NOT NULL UNIQUE,
			prompt TEXT NOT NULL,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure generation_jobs schema: %w", err)
	}
	return nil
}

// AddJob records a freshly submitted prediction.
func (s *JobStore) AddJob(predictionID, prompt, mode, status string) (*GenerationJob, error) {
	now := time.Now()

	query := `
		INSERT INTO generation_jobs (prediction_id, prompt, mode, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, prediction_id, prompt, mode, status, created_at, updated_at
	`

	var job GenerationJob
	err := s.db.QueryRow(query, predictionID, prompt, mode, status, now).Scan(
		&job.ID,
		&job.PredictionID,
		&job.Prompt,
		&job.Mode,
		&job.Status,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJobStatus updates the status (and error text) of a recorded job.
func (s *JobStore) UpdateJobStatus(predictionID, status, errorMsg string) error {
	query := `
		UPDATE generation_jobs
		SET status = $1, error = $2, updated_at = $3
		WHERE prediction_id = $4
	`
	_, err := s.db.Exec(query, status, errorMsg, time.Now(), predictionID)
	return err
}

// GetJob retrieves a single job record, or nil when none exists.
func (s *JobStore) GetJob(predictionID string) (*GenerationJob, error) {
	query := `
		SELECT id, prediction_id, prompt, mode, status, COALESCE(error, ''), created_at, updated_at
		FROM generation_jobs
		WHERE prediction_id = $1
	`

	var job GenerationJob
	err := s.db.QueryRow(query, predictionID).Scan(
		&job.ID,
		&job.PredictionID,
		&job.Prompt,
		&job.Mode,
		&job.Status,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListRecent returns the newest job records first.
func (s *JobStore) ListRecent(limit int) ([]GenerationJob, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `
		SELECT id, prediction_id, prompt, mode, status, COALESCE(error, ''), created_at, updated_at
		FROM generation_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []GenerationJob
	for rows.Next() {
		var job GenerationJob
		err := rows.Scan(
			&job.ID,
			&job.PredictionID,
			&job.Prompt,
			&job.Mode,
			&job.Status,
			&job.Error,
			&job.CreatedAt,
			&job.UpdatedAt,
		)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Close releases the database connection pool.
func (s *JobStore) Close() error {
	return s.db.Close()
}
