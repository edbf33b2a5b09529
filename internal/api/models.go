package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/service"
)

// --- Auth ---

// RegisterRequest represents the payload for user registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof='Project Manager' 'Developer'"`
}

// LoginRequest represents the payload for user login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the payload for refreshing an access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse represents the response for successful authentication
type AuthResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RefreshTokenResponse carries the new token pair issued for a valid
// refresh token.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// --- Tasks ---

// CreateTaskRequest represents the payload for creating a task
type CreateTaskRequest struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=5000"`
	AssigneeIDs []uuid.UUID `json:"assignee_ids"`
	Priority    string      `json:"priority" validate:"omitempty,oneof=Low Medium High Urgent"`
	DueDate     time.Time   `json:"due_date" validate:"required"`
	ProjectLink string      `json:"project_link" validate:"omitempty,url,max=500"`
}

// UpdateTaskStatusRequest represents the payload for a status transition.
// The project link is optional and only honored for developers.
type UpdateTaskStatusRequest struct {
	Status      string `json:"status" validate:"required"`
	ProjectLink string `json:"project_link" validate:"omitempty,url,max=500"`
}

// CreateCommentRequest represents the payload for commenting on a task
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

// TaskResponse represents a task in API responses
type TaskResponse struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CreatorID   uuid.UUID   `json:"creator_id"`
	AssigneeIDs []uuid.UUID `json:"assignee_ids"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority"`
	DueDate     time.Time   `json:"due_date"`
	ProjectLink string      `json:"project_link,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TaskTransitionResponse reports the outcome of a status transition,
// including the status the task had before it.
type TaskTransitionResponse struct {
	Task        TaskResponse `json:"task"`
	PriorStatus string       `json:"prior_status"`
	Status      string       `json:"status"`
}

// CommentResponse represents a comment in API responses
type CommentResponse struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskDetailResponse bundles a task with its comments
type TaskDetailResponse struct {
	Task     TaskResponse      `json:"task"`
	Comments []CommentResponse `json:"comments"`
}

// DashboardResponse aggregates task counts with the most recent activity
// feed lines.
type DashboardResponse struct {
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	OverdueTasks   int            `json:"overdue_tasks"`
	ByStatus       map[string]int `json:"by_status"`
	ByPriority     map[string]int `json:"by_priority"`
	RecentActivity []string       `json:"recent_activity"`
}

// taskToResponse converts a domain Task to its API representation.
func taskToResponse(t *domain.Task) TaskResponse {
	assignees := t.AssigneeIDs
	if assignees == nil {
		assignees = []uuid.UUID{}
	}
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatorID:   t.CreatorID,
		AssigneeIDs: assignees,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		ProjectLink: t.ProjectLink,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// commentToResponse converts a domain Comment to its API representation.
func commentToResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TaskID:    c.TaskID,
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

// dashboardToResponse converts a dashboard summary to its API representation.
func dashboardToResponse(summary *service.DashboardSummary) DashboardResponse {
	byStatus := make(map[string]int, len(summary.Counts.ByStatus))
	for status, n := range summary.Counts.ByStatus {
		byStatus[string(status)] = n
	}
	byPriority := make(map[string]int, len(summary.Counts.ByPriority))
	for priority, n := range summary.Counts.ByPriority {
		byPriority[string(priority)] = n
	}

	activity := summary.RecentActivity
	if activity == nil {
		activity = []string{}
	}

	return DashboardResponse{
		TotalTasks:     summary.Counts.Total,
		CompletedTasks: summary.Counts.Completed,
		OverdueTasks:   summary.Counts.Overdue,
		ByStatus:       byStatus,
		ByPriority:     byPriority,
		RecentActivity: activity,
	}
}
