package api

import (
	"log/slog"
	"net/http"

	"github.com/cmorrow/taskhub-api/internal/api/shared"
	"github.com/cmorrow/taskhub-api/internal/domain"
	"github.com/cmorrow/taskhub-api/internal/platform/logger"
	"github.com/cmorrow/taskhub-api/internal/service"
	"github.com/cmorrow/taskhub-api/internal/store"
)

// TaskHandler handles task-related requests.
type TaskHandler struct {
	taskService service.TaskService
	users       store.UserStore
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(
	taskService service.TaskService,
	users store.UserStore,
	log *slog.Logger,
) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		users:       users,
		logger:      log.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles requests to create a new task.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var priority domain.TaskPriority
	if req.Priority != "" {
		var err error
		priority, err = domain.ParseTaskPriority(req.Priority)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
	}

	task, err := h.taskService.CreateTask(ctx, actor, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeIDs: req.AssigneeIDs,
		Priority:    priority,
		DueDate:     req.DueDate,
		ProjectLink: req.ProjectLink,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task))
}

// ListTasks handles requests to list tasks, optionally filtered by the
// "status" and "priority" query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter store.TaskListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("priority"); raw != "" {
		priority, err := domain.ParseTaskPriority(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		filter.Priority = priority
	}

	tasks, err := h.taskService.ListTasks(ctx, filter)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		responses = append(responses, taskToResponse(&tasks[i]))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetTask handles requests to retrieve a single task with its comments.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.taskService.GetTask(ctx, taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	comments := make([]CommentResponse, 0, len(detail.Comments))
	for i := range detail.Comments {
		comments = append(comments, commentToResponse(&detail.Comments[i]))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskDetailResponse{
		Task:     taskToResponse(detail.Task),
		Comments: comments,
	})
}

// UpdateTaskStatus handles requests to move a task to a new status.
func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}

	taskID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTaskStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	status, err := domain.ParseTaskStatus(req.Status)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.taskService.ProposeTransition(ctx, actor, taskID, status, req.ProjectLink)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskTransitionResponse{
		Task:        taskToResponse(result.Task),
		PriorStatus: string(result.PriorStatus),
		Status:      string(result.Task.Status),
	})
}

// AddComment handles requests to comment on a task.
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := h.loadActor(w, r)
	if !ok {
		return
	}

	taskID, ok := getPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CreateCommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.taskService.AddComment(ctx, actor, taskID, req.Body)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, commentToResponse(comment))
}

// Dashboard handles requests for the aggregate dashboard view.
func (h *TaskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.taskService.Dashboard(ctx)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, dashboardToResponse(summary))
}

// loadActor resolves the authenticated user from the request context.
// The role on the stored user record is authoritative; it is never taken
// from token claims.
func (h *TaskHandler) loadActor(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	ctx := r.Context()
	log := logger.FromContextOrDefault(ctx, h.logger)

	userID, ok := getUserIDFromContext(w, r)
	if !ok {
		return nil, false
	}

	actor, err := h.users.GetByID(ctx, userID)
	if err != nil {
		log.Error("failed to load authenticated user",
			"error", err,
			"user_id", userID)
		HandleAPIError(w, r, err, "Failed to resolve user")
		return nil, false
	}

	return actor, true
}
