package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/omnimedia-api/internal/domain"
	"github.com/phrazzld/omnimedia-api/internal/platform/logger"
	"github.com/phrazzld/omnimedia-api/internal/store"
)

const taskColumns = `id, prompt, media_type, status, progress, result_data, stream_url, error_message, metadata, created_at, completed_at`

// PostgresTaskStore implements store.TaskStore using PostgreSQL.
type PostgresTaskStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:  db,
		now: time.Now,
	}
}

// Create inserts a new queued task built from spec.
func (s *PostgresTaskStore) Create(ctx context.Context, spec domain.TaskSpec) (domain.Task, error) {
	log := logger.FromContext(ctx)

	task, err := domain.NewTask(spec, s.now())
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return domain.Task{}, fmt.Errorf("%w: metadata: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO media_tasks (id, prompt, media_type, status, progress, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Prompt,
		string(task.MediaKind),
		string(task.Status),
		task.Progress,
		metadata,
		task.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert task",
			"task_id", task.ID,
			"media_type", task.MediaKind,
			"error", err)
		return domain.Task{}, MapError(err)
	}

	return task.Clone(), nil
}

// Get returns a snapshot of the task.
func (s *PostgresTaskStore) Get(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, s.db, id, false)
}

// Update locks the row, applies mutation to the loaded task and writes the
// result back in the same transaction.
func (s *PostgresTaskStore) Update(ctx context.Context, id string, mutation store.TaskMutation) (domain.Task, error) {
	var updated domain.Task

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := getTask(ctx, tx, id, true)
		if err != nil {
			return err
		}

		working := current.Clone()
		if err := mutation(&working); err != nil {
			return err
		}
		if err := working.Validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}

		if err := writeTask(ctx, tx, working, s.now()); err != nil {
			return err
		}
		updated = working
		return nil
	})
	if err != nil {
		return domain.Task{}, err
	}

	return updated.Clone(), nil
}

// Counts returns the number of total and active tasks.
func (s *PostgresTaskStore) Counts(ctx context.Context) (store.TaskCounts, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status NOT IN ('completed', 'failed'))
		FROM media_tasks
	`

	var counts store.TaskCounts
	if err := s.db.QueryRowContext(ctx, query).Scan(&counts.Total, &counts.Active); err != nil {
		logger.FromContext(ctx).Error("failed to count tasks", "error", err)
		return store.TaskCounts{}, MapError(err)
	}
	return counts, nil
}

func getTask(ctx context.Context, db store.DBTX, id string, forUpdate bool) (domain.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Task{}, store.ErrTaskNotFound
	}

	query := `SELECT ` + taskColumns + ` FROM media_tasks WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	task, err := scanTask(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, store.ErrTaskNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to load task", "task_id", id, "error", err)
		return domain.Task{}, MapError(err)
	}
	return task, nil
}

func writeTask(ctx context.Context, db store.DBTX, task domain.Task, now time.Time) error {
	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %w", store.ErrInvalidEntity, err)
	}

	var completedAt sql.NullTime
	if task.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *task.CompletedAt, Valid: true}
	}

	query := `
		UPDATE media_tasks
		SET status = $2, progress = $3, result_data = $4, stream_url = $5,
		    error_message = $6, metadata = $7, completed_at = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := db.ExecContext(ctx, query,
		task.ID,
		string(task.Status),
		task.Progress,
		nullString(task.Result),
		nullString(task.StreamRef),
		nullString(task.Error),
		metadata,
		completedAt,
		now.UTC(),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update task",
			"task_id", task.ID,
			"status", task.Status,
			"error", err)
		return fmt.Errorf("%w: %w", store.ErrUpdateFailed, MapError(err))
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task                        domain.Task
		mediaKind, status           string
		result, streamRef, errorMsg sql.NullString
		metadata                    []byte
		completedAt                 sql.NullTime
	)

	if err := row.Scan(
		&task.ID,
		&task.Prompt,
		&mediaKind,
		&status,
		&task.Progress,
		&result,
		&streamRef,
		&errorMsg,
		&metadata,
		&task.CreatedAt,
		&completedAt,
	); err != nil {
		return domain.Task{}, err
	}

	task.MediaKind = domain.MediaKind(mediaKind)
	task.Status = domain.TaskStatus(status)
	task.Result = result.String
	task.StreamRef = streamRef.String
	task.Error = errorMsg.String
	task.CreatedAt = task.CreatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		task.CompletedAt = &t
	}

	task.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &task.Metadata); err != nil {
			return domain.Task{}, fmt.Errorf("failed to decode task metadata: %w", err)
		}
	}

	return task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)
