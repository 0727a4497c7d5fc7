package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskshare/backend/internal/cache"
	"taskshare/backend/internal/config"
	"taskshare/backend/internal/handlers"
	"taskshare/backend/internal/middleware"
	"taskshare/backend/internal/monitoring"
	"taskshare/backend/internal/notify"
	"taskshare/backend/internal/services"
	"taskshare/backend/internal/store"
	"taskshare/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db := initDatabase(cfg)
	redisCache := initRedis(cfg)
	defer redisCache.Close()

	hub := notify.NewWSHub()
	notifier := notify.NewNotifier(hub)
	taskStore := store.NewGormStore(db)
	listCache := cache.NewTaskListCache(redisCache, 5*time.Minute)
	reminderQueue := worker.NewQueue(redisCache.Client(), cfg.Worker.MaxTries)

	identity := services.NewIdentityService(db, cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.BCryptCost)
	tasks := services.NewTaskService(taskStore, notifier).
		WithListCache(listCache).
		WithReminders(reminderQueue)
	sharing := services.NewSharingService(taskStore, identity, notifier).
		WithListCache(listCache)

	var reminderWorker *worker.Worker
	if cfg.Worker.Enabled {
		reminderWorker = worker.NewWorker(redisCache.Client(), reminderHandler(taskStore, notifier)).
			WithPollInterval(cfg.Worker.PollInterval)
		reminderWorker.Start(1)
	}

	monitor := monitoring.NewMonitor()
	monitor.RegisterHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	monitor.RegisterHealthCheck("redis", redisCache.Health)

	router := buildRouter(cfg, monitor, identity, tasks, sharing, hub)

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.GetServerAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}

	if reminderWorker != nil {
		reminderWorker.Stop()
	}
	notifier.Wait()
	log.Println("Server stopped")
}

func initDatabase(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to access database pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := services.MigrateUsers(db); err != nil {
		log.Fatalf("Failed to migrate user tables: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate task tables: %v", err)
	}
	return db
}

func initRedis(cfg *config.Config) *cache.RedisCache {
	return cache.NewRedisCache(&cache.Config{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
}

// reminderHandler resolves a due reminder against the current task state.
// Tasks completed or deleted since scheduling produce no notification.
func reminderHandler(taskStore store.TaskStore, notifier *notify.Notifier) worker.Handler {
	return func(ctx context.Context, job *worker.Job) error {
		task, err := taskStore.FindByID(ctx, job.TaskID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil
			}
			return err
		}
		if task.Completed() {
			return nil
		}
		notifier.Notify(notify.EventTaskReminder, task, task.OwnerID)
		return nil
	}
}

func buildRouter(
	cfg *config.Config,
	monitor *monitoring.Monitor,
	identity *services.IdentityService,
	tasks *services.TaskService,
	sharing *services.SharingService,
	hub *notify.WSHub,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(monitor.Middleware())

	authHandler := handlers.NewAuthHandler(identity, cfg.Auth.AccessTokenTTL)
	taskHandler := handlers.NewTaskHandler(tasks, sharing)
	wsHandler := handlers.NewWSHandler(hub, cfg.CORS.AllowedOrigins)

	router.GET("/health", monitor.HealthHandler())
	router.GET("/health/live", monitor.LivenessHandler())
	router.GET("/metrics", monitor.MetricsHandler())

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	authed := router.Group("/")
	authed.Use(middleware.Auth(middleware.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Issuer:    services.TokenIssuer,
	}))
	if cfg.RateLimit.Enabled {
		authed.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		}))
	}

	authed.GET("/auth/me", authHandler.Me)
	authed.DELETE("/auth/account", authHandler.DeactivateAccount)
	authed.POST("/tasks", taskHandler.CreateTask)
	authed.GET("/tasks", taskHandler.ListTasks)
	authed.GET("/tasks/:id", taskHandler.GetTask)
	authed.PUT("/tasks/:id", taskHandler.UpdateTask)
	authed.DELETE("/tasks/:id", taskHandler.DeleteTask)
	authed.POST("/tasks/:id/shares", taskHandler.ShareTask)
	authed.DELETE("/tasks/:id/shares/:user_id", taskHandler.UnshareTask)
	authed.GET("/ws", wsHandler.Connect)

	return router
}
