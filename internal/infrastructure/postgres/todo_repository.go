package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"mytodo/internal/domain/todo"
)

type TodoRepository struct {
	db *DB
}

func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

const todoColumns = `id, user_id, text, completed, image_url, created_at, updated_at`

func scanTodo(scan func(dest ...any) error) (*todo.Todo, error) {
	var t todo.Todo
	var imageURL sql.NullString
	err := scan(&t.ID, &t.UserID, &t.Text, &t.Completed, &imageURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		t.ImageURL = &imageURL.String
	}
	return &t, nil
}

// ListByOwner returns all of a user's todos, newest-created-first.
func (r *TodoRepository) ListByOwner(ctx context.Context, userID int64) ([]*todo.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	var todos []*todo.Todo
	for rows.Next() {
		t, err := scanTodo(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}

	return todos, nil
}

func (r *TodoRepository) Create(ctx context.Context, userID int64, params todo.CreateTodoParams) (*todo.Todo, error) {
	query := `
		INSERT INTO todos (user_id, text, image_url)
		VALUES ($1, $2, $3)
		RETURNING ` + todoColumns + `
	`

	t, err := scanTodo(r.db.QueryRowContext(ctx, query, userID, params.Text, params.ImageURL).Scan)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	return t, nil
}

func (r *TodoRepository) UpdateText(ctx context.Context, id int64, text string) (*todo.Todo, error) {
	query := `
		UPDATE todos
		SET text = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING ` + todoColumns + `
	`

	t, err := scanTodo(r.db.QueryRowContext(ctx, query, text, id).Scan)
	if err == sql.ErrNoRows {
		return nil, todo.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo text: %w", err)
	}

	return t, nil
}

// SetCompleted flips only the completion column; text and image_url are
// never part of this statement.
func (r *TodoRepository) SetCompleted(ctx context.Context, id int64, completed bool) (*todo.Todo, error) {
	query := `
		UPDATE todos
		SET completed = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING ` + todoColumns + `
	`

	t, err := scanTodo(r.db.QueryRowContext(ctx, query, completed, id).Scan)
	if err == sql.ErrNoRows {
		return nil, todo.ErrTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set todo completion: %w", err)
	}

	return t, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return todo.ErrTodoNotFound
	}

	return nil
}
