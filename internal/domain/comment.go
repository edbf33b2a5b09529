package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Comment
var (
	ErrEmptyCommentID       = errors.New("comment ID cannot be empty")
	ErrEmptyCommentTaskID   = errors.New("comment task ID cannot be empty")
	ErrEmptyCommentAuthorID = errors.New("comment author ID cannot be empty")
	ErrEmptyCommentBody     = errors.New("comment body cannot be empty")
)

// Comment is a free-text remark left by a user on a task.
// Comments are immutable once created.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NewComment creates a new Comment on the given task by the given author.
// Returns an error if validation fails.
func NewComment(taskID, authorID uuid.UUID, body string) (*Comment, error) {
	comment := &Comment{
		ID:        uuid.New(),
		TaskID:    taskID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	if err := comment.Validate(); err != nil {
		return nil, err
	}

	return comment, nil
}

// Validate checks if the Comment has valid data.
// Returns an error if any field fails validation.
func (c *Comment) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCommentID
	}

	if c.TaskID == uuid.Nil {
		return ErrEmptyCommentTaskID
	}

	if c.AuthorID == uuid.Nil {
		return ErrEmptyCommentAuthorID
	}

	if strings.TrimSpace(c.Body) == "" {
		return ErrEmptyCommentBody
	}

	return nil
}
