package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	_ "leadflow/docs"
	"leadflow/internal/config"
	"leadflow/internal/dispatch"
	"leadflow/internal/handlers"
	"leadflow/internal/locking"
	"leadflow/internal/metrics"
	"leadflow/internal/middleware"
	"leadflow/internal/pdf"
	"leadflow/internal/queue"
	"leadflow/internal/realtime"
	"leadflow/internal/repositories"
	"leadflow/internal/routes"
	"leadflow/internal/services"
	"leadflow/internal/workflow"
)

type leadStore interface {
	workflow.Store
	handlers.LeadCreator
}

// App is the fully wired service.
type App struct {
	Router     *gin.Engine
	Engine     *workflow.Engine
	Dispatcher *dispatch.Dispatcher
	Hub        *realtime.Hub
	Queue      queue.AutomationQueue

	cfg     *config.Config
	logger  *slog.Logger
	closers []func() error
}

// New wires storage, side effects and HTTP from cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// === Storage ===
	var (
		leads      leadStore
		activities repositories.ActivityRepository
	)
	switch cfg.Storage {
	case "memory":
		leads = repositories.NewMemoryLeadRepository()
		activities = repositories.NewMemoryActivityRepository()
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		db, err := openDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		dialect := repositories.Dialect(cfg.Database.Dialect)
		leads = repositories.NewLeadRepository(db, dialect)
		activities = repositories.NewActivityRepository(db, dialect)
	}

	// === Redis ===
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	if rdb != nil {
		a.Queue = queue.NewRedisQueue(rdb, cfg.Automation.QueueKey)
	} else {
		a.Queue = queue.NewMemoryQueue()
	}

	// === Side effects ===
	a.Hub = realtime.NewHub(logger)
	notifiers := []dispatch.Notifier{a.Hub}
	if tg := cfg.Notifications.Telegram; tg.Token != "" {
		bot, err := services.NewTelegramBot(tg.Token)
		if err != nil {
			// не валим сервис из-за телеграма
			logger.Error("telegram disabled", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, services.NewTelegramNotifier(bot, tg.ChatID, logger))
		}
	}
	if em := cfg.Notifications.Email; len(em.To) > 0 {
		dialer := services.NewSMTPDialer(em.SMTPHost, em.SMTPPort, em.SMTPUser, em.SMTPPassword)
		notifiers = append(notifiers, services.NewEmailNotifier(dialer, em.FromEmail, em.To))
	}

	subs := []dispatch.Subscriber{dispatch.NewActivitySubscriber(activities)}
	for _, n := range notifiers {
		subs = append(subs, dispatch.NewNotificationSubscriber(cfg.Notifications.HighSalience, n))
	}
	subs = append(subs, dispatch.NewAutomationSubscriber(cfg.Automation.Stages, a.Queue))

	retries := dispatch.DefaultMaxRetries
	if cfg.Dispatch.MaxRetries != nil {
		retries = *cfg.Dispatch.MaxRetries
	}
	a.Dispatcher = dispatch.New(dispatch.Options{
		Workers:         cfg.Dispatch.Workers,
		Buffer:          cfg.Dispatch.Buffer,
		DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		MaxRetries:      retries,
		Logger:          logger.With(slog.String("component", "dispatch")),
		Metrics:         m,
	}, subs...)

	// === Engine ===
	var locker workflow.LeadLocker = locking.NewKeyedMutex()
	if cfg.Workflow.UseRedisLock {
		locker = locking.NewRedisLocker(rdb, cfg.Redis.Prefix, cfg.Workflow.LockTTL)
	}
	validator := workflow.NewValidator(
		workflow.NewRegistry(workflow.WithReactivation(cfg.Workflow.Reactivation.Enabled)),
		workflow.WithRequiredReason(cfg.Workflow.RequireReasonFor...),
	)
	a.Engine = workflow.NewEngine(validator, leads,
		workflow.WithPublisher(a.Dispatcher),
		workflow.WithLocker(locker),
		workflow.WithMetrics(m),
		workflow.WithLogger(logger.With(slog.String("component", "workflow"))),
		workflow.WithMaxAttempts(cfg.Workflow.MaxAttempts),
	)

	// === HTTP ===
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())
	routes.SetupRoutes(router,
		routes.Options{JWTSecret: []byte(cfg.JWT.Secret), Gatherer: reg, Swagger: true},
		handlers.NewWorkflowHandler(a.Engine, leads, pdf.NewReportGenerator("assets/fonts/DejaVuSans.ttf"), logger),
		handlers.NewNotificationHandler(a.Hub, logger),
	)
	a.Router = router

	a.Dispatcher.Start(ctx)
	ok = true
	return a, nil
}

func openDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	dialect := repositories.Dialect(cfg.Database.Dialect)
	db, err := repositories.Open(dialect, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	if cfg.Database.AutoMigrate {
		applied, err := repositories.Migrate(ctx, db, dialect)
		if err != nil {
			db.Close()
			return nil, err
		}
		for _, name := range applied {
			logger.Info("migration applied", slog.String("name", name))
		}
	}
	return db, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down")
	a.Hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", slog.Any("error", err))
	}
	if err := a.Dispatcher.Stop(shutdownCtx); err != nil {
		a.logger.Warn("dispatcher did not drain", slog.Any("error", err))
	}
	return nil
}

// Close releases storage and redis connections.
func (a *App) Close() {
	if a.Dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.Dispatcher.Stop(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", slog.Any("error", err))
		}
	}
	a.closers = nil
}
