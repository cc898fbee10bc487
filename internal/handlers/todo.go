package handlers

import (
	"net/http"
	"strconv"

	"github.com/sheffmachine/todo-api/internal/dto"
	"github.com/sheffmachine/todo-api/internal/service"

	"github.com/gin-gonic/gin"
)

// TodoHandler exposes TodoService over HTTP. Every failure is pushed with
// c.Error and rendered by ErrorHandler.
type TodoHandler struct {
	svc   *service.TodoService
	clock service.Clock
}

func NewTodoHandler(svc *service.TodoService, clock service.Clock) *TodoHandler {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &TodoHandler{svc: svc, clock: clock}
}

// Create godoc
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTodoRequest  true  "Todo body"
// @Success      201   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ValidationErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	var req dto.CreateTodoRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	t, err := h.svc.Create(c.Request.Context(), dto.NewTodo(req, h.clock.Now()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToResponse(t))
}

// List godoc
// @Summary      List all todos, newest first
// @Tags         todos
// @Produce      json
// @Success      200  {array}   dto.TodoResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponseList(list))
}

// Completed godoc
// @Summary      List completed todos, newest first
// @Tags         todos
// @Produce      json
// @Success      200  {array}   dto.TodoResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/completed [get]
func (h *TodoHandler) Completed(c *gin.Context) {
	list, err := h.svc.ListCompleted(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponseList(list))
}

// Pending godoc
// @Summary      List pending todos, newest first
// @Tags         todos
// @Produce      json
// @Success      200  {array}   dto.TodoResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/pending [get]
func (h *TodoHandler) Pending(c *gin.Context) {
	list, err := h.svc.ListPending(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponseList(list))
}

// Search godoc
// @Summary      Search todos by title or description
// @Tags         todos
// @Produce      json
// @Param        q    query     string  true  "Search query"
// @Success      200  {array}   dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/search [get]
func (h *TodoHandler) Search(c *gin.Context) {
	q, ok := c.GetQuery("q")
	if !ok {
		_ = c.Error(&MissingParamError{Name: "q", In: InQuery, Expected: "string"})
		return
	}
	list, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponseList(list))
}

// GetByID godoc
// @Summary      Get a todo by ID
// @Tags         todos
// @Produce      json
// @Param        id   path      int  true  "Todo ID"
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [get]
func (h *TodoHandler) GetByID(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	t, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponse(t))
}

// Update godoc
// @Summary      Update a todo
// @Description  Fields left out of the body keep their current value.
// @Tags         todos
// @Accept       json
// @Produce      json
// @Param        id    path      int                    true  "Todo ID"
// @Param        body  body      dto.UpdateTodoRequest  true  "Partial update"
// @Success      200   {object}  dto.TodoResponse
// @Failure      400   {object}  dto.ValidationErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse
// @Router       /todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req dto.UpdateTodoRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	existing, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	next := dto.ApplyUpdate(existing, req, h.clock.Now())

	t, err := h.svc.Update(c.Request.Context(), id, next.Fields())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponse(t))
}

// Toggle godoc
// @Summary      Flip a todo's completion state
// @Tags         todos
// @Produce      json
// @Param        id   path      int  true  "Todo ID"
// @Success      200  {object}  dto.TodoResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id}/toggle [patch]
func (h *TodoHandler) Toggle(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	t, err := h.svc.ToggleCompletion(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.ToResponse(t))
}

// Delete godoc
// @Summary      Delete a todo
// @Tags         todos
// @Param        id   path  int  true  "Todo ID"
// @Success      204
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := h.svc.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	if raw == "" {
		return 0, &MissingParamError{Name: name, In: InPath, Expected: "int64"}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &TypeMismatchError{Param: name, Value: raw, Expected: "int64"}
	}
	if id <= 0 {
		return 0, &service.InvalidArgumentError{Message: "id must be a positive integer"}
	}
	return id, nil
}
