package dto

import "time"

// CreateTodoRequest is the JSON body for POST /todos.
type CreateTodoRequest struct {
	Title       string  `json:"title" binding:"required,notblank,max=255" example:"New Todo"`
	Description *string `json:"description" binding:"omitempty,max=1000" example:"New Description"`
}

// UpdateTodoRequest is the JSON body for PUT /todos/{id}. Absent fields are left unchanged.
type UpdateTodoRequest struct {
	Title       *string `json:"title" binding:"omitnil,notblank,max=255"`
	Description *string `json:"description" binding:"omitnil,max=1000"`
	Completed   *bool   `json:"completed"`
}

type TodoResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}
