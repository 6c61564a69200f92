// Package app assembles repositories, services and handlers from configuration.
// Both the HTTP server and the operator CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/meu-horario-api/internal/handler"
	"github.com/noah-isme/meu-horario-api/internal/middleware"
	"github.com/noah-isme/meu-horario-api/internal/repository"
	"github.com/noah-isme/meu-horario-api/internal/scheduler"
	"github.com/noah-isme/meu-horario-api/internal/seed"
	"github.com/noah-isme/meu-horario-api/internal/service"
	"github.com/noah-isme/meu-horario-api/pkg/cache"
	"github.com/noah-isme/meu-horario-api/pkg/config"
	"github.com/noah-isme/meu-horario-api/pkg/database"
	appErrors "github.com/noah-isme/meu-horario-api/pkg/errors"
	"github.com/noah-isme/meu-horario-api/pkg/jobs"
	"github.com/noah-isme/meu-horario-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/meu-horario-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/meu-horario-api/pkg/middleware/requestid"
	"github.com/noah-isme/meu-horario-api/pkg/response"
	"github.com/noah-isme/meu-horario-api/pkg/storage"
)

// Repositories are the sqlx stores shared by every service.
type Repositories struct {
	Teachers      *repository.TeacherRepository
	Availability  *repository.AvailabilityRepository
	ClassSections *repository.ClassSectionRepository
	Subjects      *repository.SubjectRepository
	Slots         *repository.SlotRepository
	ExportJobs    *repository.ExportJobRepository
}

// Services are the domain services built on Repositories.
type Services struct {
	Metrics       *service.MetricsService
	Cache         *service.CacheService
	Locker        *service.ScheduleLocker
	Timetables    *service.TimetableService
	Allocation    *service.AllocationService
	Teachers      *service.TeacherService
	Availability  *service.AvailabilityService
	ClassSections *service.ClassSectionService
	Subjects      *service.SubjectService
	Slots         *service.SlotService
	Exports       *service.ExportJobService
}

// App owns the process-wide resources.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Repos    Repositories
	Services Services

	exportQueue *jobs.Queue
}

// New connects to PostgreSQL (and Redis when caching is on) and builds every
// service. Exports are only wired when enabled in cfg.
func New(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := &App{Config: cfg, Logger: logr, DB: db}

	if cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, db, logr); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		} else {
			a.Redis = client
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}

	a.Repos = Repositories{
		Teachers:      repository.NewTeacherRepository(db),
		Availability:  repository.NewAvailabilityRepository(db),
		ClassSections: repository.NewClassSectionRepository(db),
		Subjects:      repository.NewSubjectRepository(db),
		Slots:         repository.NewSlotRepository(db),
		ExportJobs:    repository.NewExportJobRepository(db),
	}
	if err := a.buildServices(ctx, cacheRepo); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildServices(ctx context.Context, cacheRepo service.CacheRepository) error {
	cfg, logr, r := a.Config, a.Logger, a.Repos
	validate := validator.New()

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TimetableTTL, logr, cacheRepo != nil)
	locker := service.NewScheduleLocker(repository.NewLockRepository())
	timetables := service.NewTimetableService(r.Slots, r.Teachers, r.ClassSections, cacheSvc, cfg.Cache.TimetableTTL, logr)

	allocation := service.NewAllocationService(service.AllocationServiceParams{
		DB:           a.DB,
		Subjects:     r.Subjects,
		Teachers:     r.Teachers,
		Availability: r.Availability,
		Slots:        r.Slots,
		Locker:       locker,
		Policy: scheduler.Policy{
			MaxConsecutive:         cfg.Scheduler.MaxConsecutive,
			RelaxedPass:            cfg.Scheduler.RelaxedPass,
			RunCheckCountsExisting: cfg.Scheduler.RunCheckExisting,
		},
		PriorityCategories: cfg.Scheduler.PriorityCategories,
		Timetables:         timetables,
		Metrics:            metrics,
		Logger:             logr,
	})

	a.Services = Services{
		Metrics:    metrics,
		Cache:      cacheSvc,
		Locker:     locker,
		Timetables: timetables,
		Allocation: allocation,
		Teachers: service.NewTeacherService(service.TeacherServiceParams{
			DB:           a.DB,
			Teachers:     r.Teachers,
			Availability: r.Availability,
			Subjects:     r.Subjects,
			Slots:        r.Slots,
			Locker:       locker,
			Timetables:   timetables,
			Validator:    validate,
			Logger:       logr,
		}),
		Availability:  service.NewAvailabilityService(r.Availability, r.Teachers, validate, logr),
		ClassSections: service.NewClassSectionService(a.DB, r.ClassSections, r.Subjects, r.Slots, locker, timetables, validate, logr),
		Subjects: service.NewSubjectService(service.SubjectServiceParams{
			DB:            a.DB,
			Subjects:      r.Subjects,
			Teachers:      r.Teachers,
			ClassSections: r.ClassSections,
			Slots:         r.Slots,
			SlotLister:    r.Slots,
			Allocator:     allocation,
			Locker:        locker,
			Timetables:    timetables,
			Validator:     validate,
			Logger:        logr,
		}),
		Slots: service.NewSlotService(a.DB, r.Slots, r.Subjects, locker, timetables, validate, logr),
	}

	if !cfg.Exports.Enabled {
		return nil
	}
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(timetables, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)

	worker := service.NewExportWorker(r.ExportJobs, exporter, metrics, cfg.Exports.WorkerRetries, logr)
	a.exportQueue = jobs.NewQueue("timetable-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	a.Services.Exports = service.NewExportJobService(r.ExportJobs, timetables, a.exportQueue, exporter, validate, logr, service.ExportJobConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	return nil
}

// StartBackground runs the export workers and the cleanup ticker until ctx ends.
func (a *App) StartBackground(ctx context.Context) {
	if a.exportQueue == nil {
		return
	}
	a.exportQueue.Start(ctx)
	a.Services.Exports.RecoverPendingJobs(ctx)
	a.Services.Exports.StartCleanup(ctx)
}

// Seeder returns a seeder bound to the application services.
func (a *App) Seeder() *seed.Seeder {
	return seed.New(seed.Params{
		TeacherLookup:      a.Repos.Teachers,
		Teachers:           a.Services.Teachers,
		Availability:       a.Services.Availability,
		ClassSectionLookup: a.Repos.ClassSections,
		ClassSections:      a.Services.ClassSections,
		Subjects:           a.Services.Subjects,
		Logger:             a.Logger,
	})
}

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	cfg := a.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Services.Metrics))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.Pinger{"postgres": a.DB}
	if a.Redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	metricsHandler := handler.NewMetricsHandler(a.Services.Metrics, checks, a.Logger)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	a.mountRoutes(api)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	return r
}

func (a *App) mountRoutes(api *gin.RouterGroup) {
	s := a.Services
	teachers := handler.NewTeacherHandler(s.Teachers)
	availability := handler.NewAvailabilityHandler(s.Availability)
	sections := handler.NewClassSectionHandler(s.ClassSections)
	subjects := handler.NewSubjectHandler(s.Subjects, s.Allocation)
	slots := handler.NewSlotHandler(s.Slots)
	timetables := handler.NewTimetableHandler(s.Timetables)

	tg := api.Group("/teachers")
	tg.GET("", teachers.List)
	tg.POST("", teachers.Create)
	tg.GET("/:id", teachers.Get)
	tg.PUT("/:id", teachers.Update)
	tg.DELETE("/:id", teachers.Delete)
	tg.GET("/:id/availabilities", availability.ListByTeacher)
	tg.GET("/:id/timetable", timetables.Teacher)

	ag := api.Group("/availabilities")
	ag.GET("", availability.List)
	ag.POST("", availability.Create)
	ag.PUT("/:id", availability.Update)
	ag.DELETE("/:id", availability.Delete)

	cg := api.Group("/class-sections")
	cg.GET("", sections.List)
	cg.POST("", sections.Create)
	cg.GET("/:id", sections.Get)
	cg.PUT("/:id", sections.Update)
	cg.DELETE("/:id", sections.Delete)
	cg.GET("/:id/timetable", timetables.ClassSection)

	sg := api.Group("/subjects")
	sg.GET("", subjects.List)
	sg.POST("", subjects.Create)
	sg.GET("/:id", subjects.Get)
	sg.PUT("/:id", subjects.Update)
	sg.DELETE("/:id", subjects.Delete)
	sg.POST("/:id/allocate", subjects.Allocate)
	sg.POST("/:id/reallocate", subjects.Reallocate)

	lg := api.Group("/slots")
	lg.GET("", slots.List)
	lg.POST("", slots.Create)
	lg.GET("/:id", slots.Get)
	lg.PUT("/:id", slots.Update)
	lg.DELETE("/:id", slots.Delete)

	if s.Exports != nil {
		exports := handler.NewExportHandler(s.Exports)
		eg := api.Group("/exports")
		eg.POST("", exports.Create)
		eg.GET("/download/:token", exports.Download)
		eg.GET("/:id", exports.Status)
	}
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.exportQueue != nil {
		a.exportQueue.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}
