package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cmorrow/taskhub-api/internal/broadcast"
	"github.com/cmorrow/taskhub-api/internal/config"
	"github.com/cmorrow/taskhub-api/internal/events"
	"github.com/cmorrow/taskhub-api/internal/notify"
	"github.com/cmorrow/taskhub-api/internal/platform/postgres"
	"github.com/cmorrow/taskhub-api/internal/platform/smtp"
	"github.com/cmorrow/taskhub-api/internal/service"
	"github.com/cmorrow/taskhub-api/internal/service/auth"
	"github.com/cmorrow/taskhub-api/internal/store"
	"github.com/cmorrow/taskhub-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore     store.UserStore
	taskStore     store.TaskStore
	commentStore  store.CommentStore
	activityStore store.ActivityStore

	// Services
	jwtService     auth.JWTService
	passwordHasher *auth.BcryptVerifier
	taskService    service.TaskService

	// Notification pipeline
	hub          *broadcast.Hub
	eventEmitter *events.InMemoryEventEmitter
	dispatcher   *notify.Dispatcher

	// Background email delivery
	taskQueue  *task.TaskQueue
	workerPool *task.WorkerPool
}

// newApplication creates a new application instance with all dependencies
// initialized. The caller supplies configuration, logging, and an open
// database connection.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.passwordHasher = auth.NewBcryptVerifier()

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.commentStore = postgres.NewPostgresCommentStore(db, logger)
	app.activityStore = postgres.NewPostgresActivityStore(db, logger)

	app.hub = broadcast.NewHub(cfg.Notify.SubscriberBuffer, logger)
	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	// Background email delivery: events become queued tasks drained by the
	// worker pool.
	app.taskQueue = task.NewTaskQueue(cfg.Notify.QueueSize, logger)
	app.workerPool = task.NewWorkerPool(app.taskQueue, task.WorkerPoolConfig{
		WorkerCount: cfg.Notify.WorkerCount,
	}, logger)

	emailSender := smtp.NewSender(cfg.Email, logger)
	app.eventEmitter.RegisterHandler(task.NewEmailEventHandler(app.taskQueue, emailSender, logger))

	app.dispatcher = notify.NewDispatcher(
		app.activityStore,
		app.userStore,
		app.hub,
		app.eventEmitter,
		logger,
	)

	app.taskService = service.NewTaskService(
		app.taskStore,
		app.userStore,
		app.commentStore,
		app.activityStore,
		db,
		app.dispatcher,
		logger,
	)

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the background workers and the HTTP server, blocking until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	app.workerPool.Start()

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskQueue != nil {
		app.taskQueue.Close()
	}
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
