package domain

import "time"

const (
	TitleMaxLen       = 255
	DescriptionMaxLen = 1000
)

// Todo is the domain entity. It does not depend on Gin, Postgres or Redis.
// A Todo with ID 0 has not been persisted yet.
type Todo struct {
	ID          int64
	Title       string
	Description *string
	Completed   bool

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// IsNew reports whether the todo has not been assigned an id by storage.
func (t Todo) IsNew() bool { return t.ID == 0 }

// Clone returns a copy that shares no pointers with t.
func (t Todo) Clone() Todo {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		out.UpdatedAt = &u
	}
	return out
}

// Fields are the mutable attributes replaced by an update.
type Fields struct {
	Title       string
	Description *string
	Completed   bool
}

// Fields returns the mutable attributes of t.
func (t Todo) Fields() Fields {
	c := t.Clone()
	return Fields{Title: c.Title, Description: c.Description, Completed: c.Completed}
}
