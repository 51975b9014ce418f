package todo

import (
	"errors"
	"strings"
	"time"
)

var ErrTodoNotFound = errors.New("todo not found")

type Todo struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateTodoParams struct {
	Text     string
	ImageURL *string
}

func (p *CreateTodoParams) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return errors.New("text is required")
	}
	if len(p.Text) > 500 {
		return errors.New("text must be 500 characters or less")
	}
	return nil
}

type UpdateTodoParams struct {
	Text      *string
	Completed *bool
}

func (p *UpdateTodoParams) Validate() error {
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return errors.New("text cannot be empty")
	}
	if p.Text != nil && len(*p.Text) > 500 {
		return errors.New("text must be 500 characters or less")
	}
	return nil
}
