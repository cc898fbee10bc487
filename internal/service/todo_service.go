package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sheffmachine/todo-api/internal/cache"
	dom "github.com/sheffmachine/todo-api/internal/domain"
	"github.com/sheffmachine/todo-api/internal/repo"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Clock supplies the current time for createdAt/updatedAt stamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ListCache is the read-through cache for todo listings.
type ListCache interface {
	GetList(ctx context.Context, key string) ([]dom.Todo, error)
	SetList(ctx context.Context, key string, list []dom.Todo) error
	InvalidateAll(ctx context.Context) error
}

type TodoService struct {
	repo  repo.TodoRepo
	cache ListCache
	clock Clock
	log   zerolog.Logger
	sf    singleflight.Group
}

// NewTodoService creates a TodoService. If c is nil, caching is disabled.
func NewTodoService(r repo.TodoRepo, c ListCache, clock Clock, log zerolog.Logger) *TodoService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TodoService{
		repo:  r,
		cache: c,
		clock: clock,
		log:   log.With().Str("component", "todo_service").Logger(),
	}
}

// List returns all todos, newest first.
func (s *TodoService) List(ctx context.Context) ([]dom.Todo, error) {
	return s.cachedList(ctx, cache.KeyAll, "Failed to retrieve todos", s.repo.FindAll)
}

// ListCompleted returns completed todos, newest first.
func (s *TodoService) ListCompleted(ctx context.Context) ([]dom.Todo, error) {
	return s.cachedList(ctx, cache.KeyCompleted, "Failed to retrieve completed todos", func(ctx context.Context) ([]dom.Todo, error) {
		return s.repo.FindByCompleted(ctx, true)
	})
}

// ListPending returns todos that are not completed, newest first.
func (s *TodoService) ListPending(ctx context.Context) ([]dom.Todo, error) {
	return s.cachedList(ctx, cache.KeyPending, "Failed to retrieve pending todos", func(ctx context.Context) ([]dom.Todo, error) {
		return s.repo.FindByCompleted(ctx, false)
	})
}

// Search returns todos whose title or description contains q, ignoring case.
func (s *TodoService) Search(ctx context.Context, q string) ([]dom.Todo, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, &InvalidArgumentError{Message: "Search query must not be blank"}
	}
	return s.cachedList(ctx, cache.SearchKey(q), "Failed to search todos", func(ctx context.Context) ([]dom.Todo, error) {
		return s.repo.Search(ctx, q)
	})
}

func (s *TodoService) GetByID(ctx context.Context, id int64) (dom.Todo, error) {
	return s.find(ctx, id, "Failed to retrieve todo")
}

// Create persists a draft. Storage assigns the id; the draft's createdAt is
// kept when set and stamped from the clock otherwise.
func (s *TodoService) Create(ctx context.Context, draft dom.Todo) (dom.Todo, error) {
	t := draft.Clone()
	t.ID = 0
	t.Completed = false
	t.UpdatedAt = nil
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.clock.Now()
	}
	if err := validateTodo(t); err != nil {
		return dom.Todo{}, err
	}

	saved, err := s.repo.Save(ctx, t)
	if err != nil {
		s.log.Error().Err(err).Str("title", t.Title).Msg("error creating todo")
		return dom.Todo{}, &OperationError{Message: "Failed to create todo", Cause: err}
	}
	s.invalidateCache(ctx)
	return saved, nil
}

// Update replaces title, description and completed of todo id.
func (s *TodoService) Update(ctx context.Context, id int64, f dom.Fields) (dom.Todo, error) {
	existing, err := s.find(ctx, id, "Failed to update todo")
	if err != nil {
		return dom.Todo{}, err
	}

	next := existing.Clone()
	next.Title = f.Title
	next.Description = nil
	if f.Description != nil {
		d := *f.Description
		next.Description = &d
	}
	next.Completed = f.Completed
	next.UpdatedAt = s.stamp(existing)
	if err := validateTodo(next); err != nil {
		return dom.Todo{}, err
	}
	return s.save(ctx, next, "Failed to update todo")
}

// ToggleCompletion flips the completed flag of todo id.
func (s *TodoService) ToggleCompletion(ctx context.Context, id int64) (dom.Todo, error) {
	existing, err := s.find(ctx, id, "Failed to toggle todo completion")
	if err != nil {
		return dom.Todo{}, err
	}

	next := existing.Clone()
	next.Completed = !existing.Completed
	next.UpdatedAt = s.stamp(existing)
	return s.save(ctx, next, "Failed to toggle todo completion")
}

// Delete removes todo id. It reports true once the row is gone.
func (s *TodoService) Delete(ctx context.Context, id int64) (bool, error) {
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("error deleting todo")
		return false, &OperationError{Message: "Failed to delete todo", Cause: err}
	}
	if !exists {
		return false, &NotFoundError{ID: id}
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, &NotFoundError{ID: id}
		}
		s.log.Error().Err(err).Int64("id", id).Msg("error deleting todo")
		return false, &OperationError{Message: "Failed to delete todo", Cause: err}
	}
	s.invalidateCache(ctx)
	return true, nil
}

func (s *TodoService) find(ctx context.Context, id int64, failMsg string) (dom.Todo, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Todo{}, &NotFoundError{ID: id}
		}
		s.log.Error().Err(err).Int64("id", id).Msg(strings.ToLower(failMsg))
		return dom.Todo{}, &OperationError{Message: failMsg, Cause: err}
	}
	return t, nil
}

func (s *TodoService) save(ctx context.Context, t dom.Todo, failMsg string) (dom.Todo, error) {
	saved, err := s.repo.Save(ctx, t)
	if err != nil {
		// Row deleted between the read and the write.
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Todo{}, &NotFoundError{ID: t.ID}
		}
		s.log.Error().Err(err).Int64("id", t.ID).Msg(strings.ToLower(failMsg))
		return dom.Todo{}, &OperationError{Message: failMsg, Cause: err}
	}
	s.invalidateCache(ctx)
	return saved, nil
}

// stamp returns the updatedAt for a mutation of t, never earlier than its createdAt.
func (s *TodoService) stamp(t dom.Todo) *time.Time {
	now := s.clock.Now()
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	return &now
}

func (s *TodoService) cachedList(ctx context.Context, key, failMsg string, load func(context.Context) ([]dom.Todo, error)) ([]dom.Todo, error) {
	var (
		list []dom.Todo
		err  error
	)
	if s.cache == nil {
		list, err = load(ctx)
	} else {
		var v interface{}
		v, err, _ = s.sf.Do(key, func() (interface{}, error) {
			cached, cerr := s.cache.GetList(ctx, key)
			if cerr != nil {
				s.log.Warn().Err(cerr).Str("key", key).Msg("todo cache read failed")
			} else if cached != nil {
				return cached, nil
			}
			fresh, lerr := load(ctx)
			if lerr != nil {
				return nil, lerr
			}
			if serr := s.cache.SetList(ctx, key, fresh); serr != nil {
				s.log.Warn().Err(serr).Str("key", key).Msg("todo cache write failed")
			}
			return fresh, nil
		})
		if err == nil {
			list = v.([]dom.Todo)
		}
	}
	if err != nil {
		s.log.Error().Err(err).Str("list", key).Msg(strings.ToLower(failMsg))
		return nil, &OperationError{Message: failMsg, Cause: err}
	}
	if list == nil {
		list = []dom.Todo{}
	}
	return list, nil
}

func (s *TodoService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("todo cache invalidation failed")
	}
}

func validateTodo(t dom.Todo) error {
	fieldErrors := map[string]string{}
	if strings.TrimSpace(t.Title) == "" {
		fieldErrors["title"] = "Title is required"
	} else if utf8.RuneCountInString(t.Title) > dom.TitleMaxLen {
		fieldErrors["title"] = "Title must not exceed 255 characters"
	}
	if t.Description != nil && utf8.RuneCountInString(*t.Description) > dom.DescriptionMaxLen {
		fieldErrors["description"] = "Description must not exceed 1000 characters"
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return &ValidationError{Message: "Todo validation failed", FieldErrors: fieldErrors}
}
