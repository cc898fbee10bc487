// Package repotest provides an in-memory repo.TodoRepo for tests.
// It records calls per method and can be told to fail any of them.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"

	dom "github.com/sheffmachine/todo-api/internal/domain"
	"github.com/sheffmachine/todo-api/internal/repo"

	"github.com/jackc/pgx/v5"
)

// Method names accepted by Fail and Calls.
const (
	FindByID        = "FindByID"
	FindAll         = "FindAll"
	FindByCompleted = "FindByCompleted"
	Search          = "Search"
	Save            = "Save"
	DeleteByID      = "DeleteByID"
	ExistsByID      = "ExistsByID"
)

// Repo is an in-memory todo store with Postgres-like semantics:
// missing rows yield pgx.ErrNoRows and listings are newest first.
type Repo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]dom.Todo
	fail   map[string]error
	calls  map[string]int
	vanish map[int64]bool
}

var _ repo.TodoRepo = (*Repo)(nil)

// New returns a Repo holding seed; later inserts get ids above the largest seeded id.
func New(seed ...dom.Todo) *Repo {
	r := &Repo{rows: map[int64]dom.Todo{}, fail: map[string]error{}, calls: map[string]int{}, vanish: map[int64]bool{}}
	for _, t := range seed {
		if t.ID > r.nextID {
			r.nextID = t.ID
		}
		r.rows[t.ID] = t.Clone()
	}
	return r
}

// Fail makes every later call to method return err.
func (r *Repo) Fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

// Calls returns how many times method was invoked.
func (r *Repo) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// VanishOnSave deletes row id right before the next Save of it, as a
// concurrent delete between a read and a write would.
func (r *Repo) VanishOnSave(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vanish[id] = true
}

func (r *Repo) enter(method string) error {
	r.mu.Lock()
	r.calls[method]++
	return r.fail[method]
}

func (r *Repo) FindByID(_ context.Context, id int64) (dom.Todo, error) {
	defer r.mu.Unlock()
	if err := r.enter(FindByID); err != nil {
		return dom.Todo{}, err
	}
	t, ok := r.rows[id]
	if !ok {
		return dom.Todo{}, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (r *Repo) FindAll(_ context.Context) ([]dom.Todo, error) {
	defer r.mu.Unlock()
	if err := r.enter(FindAll); err != nil {
		return nil, err
	}
	return r.collect(func(dom.Todo) bool { return true }), nil
}

func (r *Repo) FindByCompleted(_ context.Context, completed bool) ([]dom.Todo, error) {
	defer r.mu.Unlock()
	if err := r.enter(FindByCompleted); err != nil {
		return nil, err
	}
	return r.collect(func(t dom.Todo) bool { return t.Completed == completed }), nil
}

func (r *Repo) Search(_ context.Context, q string) ([]dom.Todo, error) {
	defer r.mu.Unlock()
	if err := r.enter(Search); err != nil {
		return nil, err
	}
	q = strings.ToLower(q)
	return r.collect(func(t dom.Todo) bool {
		if strings.Contains(strings.ToLower(t.Title), q) {
			return true
		}
		return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
	}), nil
}

func (r *Repo) Save(_ context.Context, t dom.Todo) (dom.Todo, error) {
	defer r.mu.Unlock()
	if err := r.enter(Save); err != nil {
		return dom.Todo{}, err
	}
	t = t.Clone()
	if t.IsNew() {
		r.nextID++
		t.ID = r.nextID
		r.rows[t.ID] = t
		return t.Clone(), nil
	}
	if r.vanish[t.ID] {
		delete(r.rows, t.ID)
		delete(r.vanish, t.ID)
	}
	existing, ok := r.rows[t.ID]
	if !ok {
		return dom.Todo{}, pgx.ErrNoRows
	}
	t.CreatedAt = existing.CreatedAt
	r.rows[t.ID] = t
	return t.Clone(), nil
}

func (r *Repo) DeleteByID(_ context.Context, id int64) error {
	defer r.mu.Unlock()
	if err := r.enter(DeleteByID); err != nil {
		return err
	}
	if _, ok := r.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *Repo) ExistsByID(_ context.Context, id int64) (bool, error) {
	defer r.mu.Unlock()
	if err := r.enter(ExistsByID); err != nil {
		return false, err
	}
	_, ok := r.rows[id]
	return ok, nil
}

func (r *Repo) collect(keep func(dom.Todo) bool) []dom.Todo {
	out := []dom.Todo{}
	for _, t := range r.rows {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
