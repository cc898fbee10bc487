package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	dom "github.com/sheffmachine/todo-api/internal/domain"
	"github.com/sheffmachine/todo-api/internal/repo/repotest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memCache struct {
	mu          sync.Mutex
	lists       map[string][]dom.Todo
	gets        int
	invalidated int
	getErr      error
}

func newMemCache() *memCache { return &memCache{lists: map[string][]dom.Todo{}} }

func (c *memCache) GetList(_ context.Context, key string) ([]dom.Todo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.lists[key], nil
}

func (c *memCache) SetList(_ context.Context, key string, list []dom.Todo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[key] = list
	return nil
}

func (c *memCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.lists = map[string][]dom.Todo{}
	return nil
}

func ptr[T any](v T) *T { return &v }

func seedTodos() []dom.Todo {
	return []dom.Todo{
		{ID: 1, Title: "first", CreatedAt: base.Add(-3 * time.Hour)},
		{ID: 2, Title: "second", Description: ptr("done already"), Completed: true, CreatedAt: base.Add(-2 * time.Hour)},
		{ID: 3, Title: "third", CreatedAt: base.Add(-time.Hour)},
	}
}

func newTestService(t *testing.T, seed ...dom.Todo) (*TodoService, *repotest.Repo, *fakeClock) {
	t.Helper()
	r := repotest.New(seed...)
	clock := &fakeClock{now: base}
	return NewTodoService(r, nil, clock, zerolog.Nop()), r, clock
}

func ids(list []dom.Todo) []int64 {
	out := make([]int64, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func TestTodoService_List(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(all))
}

func TestTodoService_List_Empty(t *testing.T) {
	svc, _, _ := newTestService(t)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestTodoService_CompletedAndPendingPartitionAll(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)
	ctx := context.Background()

	all, err := svc.List(ctx)
	require.NoError(t, err)
	done, err := svc.ListCompleted(ctx)
	require.NoError(t, err)
	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, ids(done))
	assert.Equal(t, []int64{3, 1}, ids(pending))
	assert.ElementsMatch(t, ids(all), append(ids(done), ids(pending)...))
}

func TestTodoService_ListFailuresBecomeOperationErrors(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		call    func(*TodoService) error
		message string
	}{
		{"all", repotest.FindAll, func(s *TodoService) error { _, err := s.List(context.Background()); return err }, "Failed to retrieve todos"},
		{"completed", repotest.FindByCompleted, func(s *TodoService) error { _, err := s.ListCompleted(context.Background()); return err }, "Failed to retrieve completed todos"},
		{"pending", repotest.FindByCompleted, func(s *TodoService) error { _, err := s.ListPending(context.Background()); return err }, "Failed to retrieve pending todos"},
		{"search", repotest.Search, func(s *TodoService) error { _, err := s.Search(context.Background(), "x"); return err }, "Failed to search todos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r, _ := newTestService(t)
			cause := errors.New("connection refused")
			r.Fail(tt.method, cause)

			err := tt.call(svc)

			var opErr *OperationError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, tt.message, opErr.Message)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestTodoService_GetByID(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)

	got, err := svc.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
}

func TestTodoService_GetByID_StorageFailure(t *testing.T) {
	svc, r, _ := newTestService(t)
	r.Fail(repotest.FindByID, errors.New("timeout"))

	_, err := svc.GetByID(context.Background(), 1)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Failed to retrieve todo", opErr.Message)
}

func TestTodoService_MissingIDNeverPersists(t *testing.T) {
	ops := map[string]func(*TodoService) error{
		"get":    func(s *TodoService) error { _, err := s.GetByID(context.Background(), 999); return err },
		"update": func(s *TodoService) error { _, err := s.Update(context.Background(), 999, dom.Fields{Title: "x"}); return err },
		"toggle": func(s *TodoService) error { _, err := s.ToggleCompletion(context.Background(), 999); return err },
		"delete": func(s *TodoService) error { _, err := s.Delete(context.Background(), 999); return err },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			svc, r, _ := newTestService(t, seedTodos()...)

			err := op(svc)

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, int64(999), nf.ID)
			assert.Equal(t, "Todo with id 999 not found", err.Error())

			var opErr *OperationError
			assert.False(t, errors.As(err, &opErr), "not found must not be wrapped")
			assert.Zero(t, r.Calls(repotest.Save))
			assert.Zero(t, r.Calls(repotest.DeleteByID))
		})
	}
}

func TestTodoService_Create(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)

	created, err := svc.Create(context.Background(), dom.Todo{
		ID:          42,
		Title:       "New Todo",
		Description: ptr("New Description"),
		Completed:   true,
		UpdatedAt:   ptr(base),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4), created.ID)
	assert.False(t, created.Completed)
	assert.Nil(t, created.UpdatedAt)
	assert.Equal(t, base, created.CreatedAt)
	assert.Equal(t, "New Description", *created.Description)
}

func TestTodoService_Create_KeepsDraftTimestamp(t *testing.T) {
	svc, _, _ := newTestService(t)
	stamped := base.Add(-time.Minute)

	created, err := svc.Create(context.Background(), dom.Todo{Title: "x", CreatedAt: stamped})
	require.NoError(t, err)
	assert.Equal(t, stamped, created.CreatedAt)
}

func TestTodoService_Create_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft dom.Todo
		field string
		msg   string
	}{
		{"blank title", dom.Todo{Title: "   "}, "title", "Title is required"},
		{"long title", dom.Todo{Title: strings.Repeat("a", 256)}, "title", "Title must not exceed 255 characters"},
		{"long description", dom.Todo{Title: "ok", Description: ptr(strings.Repeat("d", 1001))}, "description", "Description must not exceed 1000 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, r, _ := newTestService(t)

			_, err := svc.Create(context.Background(), tt.draft)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.msg, vErr.FieldErrors[tt.field])
			assert.Zero(t, r.Calls(repotest.Save))
		})
	}
}

func TestTodoService_Create_MultibyteTitleAtLimit(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), dom.Todo{Title: strings.Repeat("ж", 255)})
	assert.NoError(t, err)
}

func TestTodoService_Create_StorageFailure(t *testing.T) {
	svc, r, _ := newTestService(t)
	r.Fail(repotest.Save, errors.New("disk full"))

	_, err := svc.Create(context.Background(), dom.Todo{Title: "x"})

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Failed to create todo", opErr.Message)
	assert.EqualError(t, opErr.Cause, "disk full")
}

func TestTodoService_Update(t *testing.T) {
	svc, _, clock := newTestService(t, seedTodos()...)
	clock.Advance(time.Minute)

	updated, err := svc.Update(context.Background(), 1, dom.Fields{Title: "Updated Title", Description: ptr("d"), Completed: true})
	require.NoError(t, err)

	assert.Equal(t, int64(1), updated.ID)
	assert.Equal(t, "Updated Title", updated.Title)
	assert.Equal(t, "d", *updated.Description)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, clock.now, *updated.UpdatedAt)
	assert.Equal(t, base.Add(-3*time.Hour), updated.CreatedAt)
}

func TestTodoService_Update_ClearsDescription(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)

	updated, err := svc.Update(context.Background(), 2, dom.Fields{Title: "second"})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
}

func TestTodoService_Update_DoesNotAliasInput(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)
	desc := "mine"

	_, err := svc.Update(context.Background(), 1, dom.Fields{Title: "t", Description: &desc})
	require.NoError(t, err)
	desc = "changed"

	got, err := svc.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "mine", *got.Description)
}

func TestTodoService_Update_Validation(t *testing.T) {
	svc, r, _ := newTestService(t, seedTodos()...)

	_, err := svc.Update(context.Background(), 1, dom.Fields{Title: ""})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, r.Calls(repotest.Save))
}

func TestTodoService_Update_UpdatedAtNotBeforeCreatedAt(t *testing.T) {
	future := base.Add(time.Hour)
	svc, _, _ := newTestService(t, dom.Todo{ID: 1, Title: "from the future", CreatedAt: future})

	updated, err := svc.Update(context.Background(), 1, dom.Fields{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, future, *updated.UpdatedAt)
}

func TestTodoService_RowDeletedBetweenReadAndWrite(t *testing.T) {
	svc, r, _ := newTestService(t, seedTodos()...)
	r.VanishOnSave(1)

	_, err := svc.ToggleCompletion(context.Background(), 1)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(1), nf.ID)
	assert.Equal(t, 1, r.Calls(repotest.Save))
}

func TestTodoService_Update_StorageFailure(t *testing.T) {
	svc, r, _ := newTestService(t, seedTodos()...)
	r.Fail(repotest.Save, errors.New("deadlock detected"))

	_, err := svc.Update(context.Background(), 1, dom.Fields{Title: "x"})

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Failed to update todo", opErr.Message)
}

func TestTodoService_ToggleTwiceIsInvolution(t *testing.T) {
	svc, _, clock := newTestService(t, seedTodos()...)
	ctx := context.Background()

	clock.Advance(time.Second)
	once, err := svc.ToggleCompletion(ctx, 1)
	require.NoError(t, err)
	assert.True(t, once.Completed)
	require.NotNil(t, once.UpdatedAt)

	clock.Advance(time.Second)
	twice, err := svc.ToggleCompletion(ctx, 1)
	require.NoError(t, err)
	assert.False(t, twice.Completed)
	require.NotNil(t, twice.UpdatedAt)
	assert.True(t, twice.UpdatedAt.After(*once.UpdatedAt))

	assert.Equal(t, once.Title, twice.Title)
	assert.Equal(t, once.CreatedAt, twice.CreatedAt)
	assert.Equal(t, once.Description, twice.Description)
}

func TestTodoService_Toggle_StorageFailure(t *testing.T) {
	svc, r, _ := newTestService(t, seedTodos()...)
	r.Fail(repotest.FindByID, errors.New("broken pipe"))

	_, err := svc.ToggleCompletion(context.Background(), 1)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Failed to toggle todo completion", opErr.Message)
}

func TestTodoService_Delete(t *testing.T) {
	svc, r, _ := newTestService(t, seedTodos()...)

	ok, err := svc.Delete(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, r.Calls(repotest.DeleteByID))

	_, err = svc.GetByID(context.Background(), 2)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestTodoService_Delete_StorageFailure(t *testing.T) {
	svc, r, _ := newTestService(t, seedTodos()...)
	r.Fail(repotest.DeleteByID, errors.New("lock timeout"))

	ok, err := svc.Delete(context.Background(), 2)

	assert.False(t, ok)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Failed to delete todo", opErr.Message)
}

func TestTodoService_Search(t *testing.T) {
	svc, _, _ := newTestService(t, seedTodos()...)

	got, err := svc.Search(context.Background(), "  DONE ")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(got))

	_, err = svc.Search(context.Background(), "   ")
	var argErr *InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestTodoService_CacheReadThroughAndInvalidation(t *testing.T) {
	r := repotest.New(seedTodos()...)
	c := newMemCache()
	svc := NewTodoService(r, c, &fakeClock{now: base}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	_, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Calls(repotest.FindAll), "second list served from cache")

	_, err = svc.Create(ctx, dom.Todo{Title: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.invalidated)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Calls(repotest.FindAll))
	assert.Equal(t, "fresh", all[0].Title)
}

func TestTodoService_CacheReadErrorFallsBackToStore(t *testing.T) {
	r := repotest.New(seedTodos()...)
	c := newMemCache()
	c.getErr = errors.New("redis down")
	svc := NewTodoService(r, c, nil, zerolog.Nop())

	all, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, r.Calls(repotest.FindByCompleted))
}

func TestTodoService_ErrorsAreServiceErrors(t *testing.T) {
	var _ Error = &NotFoundError{}
	var _ Error = &ValidationError{}
	var _ Error = &OperationError{}
	var _ Error = &InvalidArgumentError{}

	opErr := &OperationError{Message: "Failed to create todo", Cause: errors.New("boom")}
	assert.Equal(t, "Failed to create todo: boom", opErr.Error())
	assert.Equal(t, "x", (&OperationError{Message: "x"}).Error())
}
