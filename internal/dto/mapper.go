package dto

import (
	"time"

	dom "github.com/sheffmachine/todo-api/internal/domain"
)

// NewTodo builds a draft todo from a create request. The draft has no id,
// is not completed and carries now as its creation time.
func NewTodo(req CreateTodoRequest, now time.Time) dom.Todo {
	return dom.Todo{
		Title:       req.Title,
		Description: cloneString(req.Description),
		Completed:   false,
		CreatedAt:   now,
	}
}

// ApplyUpdate returns a copy of existing with the fields present in req
// applied and UpdatedAt set to now. existing is left untouched.
func ApplyUpdate(existing dom.Todo, req UpdateTodoRequest, now time.Time) dom.Todo {
	next := existing.Clone()
	if req.Title != nil {
		next.Title = *req.Title
	}
	if req.Description != nil {
		next.Description = cloneString(req.Description)
	}
	if req.Completed != nil {
		next.Completed = *req.Completed
	}
	next.UpdatedAt = &now
	return next
}

func ToResponse(t dom.Todo) TodoResponse {
	c := t.Clone()
	return TodoResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Completed:   c.Completed,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// ToResponseList maps list element-wise, keeping its order. A nil list maps
// to an empty slice so it encodes as [].
func ToResponseList(list []dom.Todo) []TodoResponse {
	out := make([]TodoResponse, len(list))
	for i := range list {
		out[i] = ToResponse(list[i])
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
