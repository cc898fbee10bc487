package repo

import (
	"context"
	"strings"
	"time"

	dom "github.com/sheffmachine/todo-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TodoRepo is the persistence gateway for todos. Lookups that match no row
// return pgx.ErrNoRows. Listings are ordered by created_at descending.
type TodoRepo interface {
	FindByID(ctx context.Context, id int64) (dom.Todo, error)
	FindAll(ctx context.Context) ([]dom.Todo, error)
	FindByCompleted(ctx context.Context, completed bool) ([]dom.Todo, error)
	Search(ctx context.Context, q string) ([]dom.Todo, error)
	// Save inserts t when it has no id and updates the mutable columns otherwise.
	Save(ctx context.Context, t dom.Todo) (dom.Todo, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

const todoColumns = `id, title, description, completed, created_at, updated_at`

type PGTodoRepo struct {
	db *pgxpool.Pool
}

func NewPGTodoRepo(db *pgxpool.Pool) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

func (r *PGTodoRepo) FindByID(ctx context.Context, id int64) (dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1`
	return scanTodo(r.db.QueryRow(ctx, query, id))
}

func (r *PGTodoRepo) FindAll(ctx context.Context) ([]dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *PGTodoRepo) FindByCompleted(ctx context.Context, completed bool) ([]dom.Todo, error) {
	query := `
		SELECT ` + todoColumns + ` FROM todos
		WHERE completed = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, completed)
}

func (r *PGTodoRepo) Search(ctx context.Context, q string) ([]dom.Todo, error) {
	pattern := "%" + likeEscaper.Replace(q) + "%"
	query := `
		SELECT ` + todoColumns + ` FROM todos
		WHERE title ILIKE $1 OR description ILIKE $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, pattern)
}

func (r *PGTodoRepo) Save(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	if t.IsNew() {
		var createdAt *time.Time
		if !t.CreatedAt.IsZero() {
			createdAt = &t.CreatedAt
		}
		query := `
			INSERT INTO todos (title, description, completed, created_at)
			VALUES ($1, $2, $3, COALESCE($4, NOW()))
			RETURNING ` + todoColumns
		return scanTodo(r.db.QueryRow(ctx, query, t.Title, t.Description, t.Completed, createdAt))
	}

	query := `
		UPDATE todos SET title = $2, description = $3, completed = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + todoColumns
	return scanTodo(r.db.QueryRow(ctx, query, t.ID, t.Title, t.Description, t.Completed, t.UpdatedAt))
}

func (r *PGTodoRepo) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PGTodoRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM todos WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PGTodoRepo) list(ctx context.Context, query string, args ...any) ([]dom.Todo, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (dom.Todo, error) {
		return scanTodo(row)
	})
}

func scanTodo(row pgx.Row) (dom.Todo, error) {
	var t dom.Todo
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return dom.Todo{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.UpdatedAt != nil {
		u := t.UpdatedAt.UTC()
		t.UpdatedAt = &u
	}
	return t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
