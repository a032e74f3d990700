package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/taskmind/taskmind/pkg/models"
)

// HistoryEntry is one recorded pipeline.
type HistoryEntry struct {
	ID          string
	SessionID   string
	RequestText string
	Status      models.PipelineStatus
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// RecordStart inserts a pipeline when it is admitted to the pool.
func (db *DB) RecordStart(p *models.Pipeline) error {
	requestText := ""
	if p.Request != nil {
		requestText = p.Request.Text
	}

	err := db.transact(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO pipelines (id, session_id, request_text, status, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.SessionID, requestText, string(models.PipelineRunning), formatTime(p.CreatedAt))
		if err != nil {
			return err
		}
		for i, s := range p.Steps {
			_, err := tx.Exec(`
				INSERT INTO pipeline_steps (pipeline_id, step_index, capability_id, status)
				VALUES (?, ?, ?, ?)
			`, p.ID, i, s.CapabilityID, string(s.Status))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record pipeline start: %w", err)
	}
	return nil
}

// RecordFinish updates a pipeline and its steps with their terminal state.
func (db *DB) RecordFinish(p *models.Pipeline) error {
	completed := ""
	if p.CompletedAt != nil {
		completed = formatTime(*p.CompletedAt)
	}

	err := db.transact(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE pipelines SET status = ?, error = ?, completed_at = ? WHERE id = ?
		`, string(p.Status), p.Error, completed, p.ID)
		if err != nil {
			return err
		}
		for i, s := range p.Steps {
			kind, location := "", ""
			if s.Artifact != nil {
				kind = string(s.Artifact.Kind)
				location = s.Artifact.Location
			}
			_, err := tx.Exec(`
				UPDATE pipeline_steps
				SET status = ?, attempts = ?, artifact_kind = ?, artifact_location = ?, error = ?
				WHERE pipeline_id = ? AND step_index = ?
			`, string(s.Status), s.Attempts, kind, location, s.Error, p.ID, i)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record pipeline finish: %w", err)
	}
	return nil
}

// MarkAbandoned flips pipelines still recorded as running or pending to
// abandoned. Called at startup: any such row belongs to a previous process
// and its pipeline is gone. Returns the abandoned entries so the caller can
// surface them to the user.
func (db *DB) MarkAbandoned() ([]HistoryEntry, error) {
	rows, err := db.query(`
		SELECT id, session_id, request_text, status, COALESCE(error, ''), created_at
		FROM pipelines
		WHERE status IN ('running', 'pending')
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list interrupted pipelines: %w", err)
	}
	defer rows.Close()

	var abandoned []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var status, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.RequestText, &status, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan interrupted pipeline: %w", err)
		}
		e.Status = models.PipelineAbandoned
		if t, err := parseTime(createdAt); err == nil {
			e.CreatedAt = t
		}
		abandoned = append(abandoned, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	for _, e := range abandoned {
		_, err := db.exec(`
			UPDATE pipelines SET status = ?, completed_at = ? WHERE id = ?
		`, string(models.PipelineAbandoned), now, e.ID)
		if err != nil {
			return nil, fmt.Errorf("mark pipeline %s abandoned: %w", e.ID, err)
		}
	}

	return abandoned, nil
}

// List returns the most recent pipelines, newest first.
func (db *DB) List(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.query(`
		SELECT id, session_id, request_text, status, COALESCE(error, ''), created_at, COALESCE(completed_at, '')
		FROM pipelines
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var status, createdAt, completedAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.RequestText, &status, &e.Error, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		e.Status = models.PipelineStatus(status)
		if t, err := parseTime(createdAt); err == nil {
			e.CreatedAt = t
		}
		if completedAt != "" {
			if t, err := parseTime(completedAt); err == nil {
				e.CompletedAt = &t
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// transact runs fn within a transaction.
func (db *DB) transact(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}
