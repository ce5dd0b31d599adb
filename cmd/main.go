package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"rbac-service/internal/config"
	"rbac-service/internal/database/minio"
	"rbac-service/internal/database/postgres"
	"rbac-service/internal/event"
	"rbac-service/internal/handlers"
	"rbac-service/internal/obs"
	"rbac-service/internal/repository"
	"rbac-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/var", "log", "rbac_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connecting to database: %s, retrying in background", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	} else if err := postgres.Migrate(db); err != nil {
		log.Fatalf("error applying migrations: %s", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisCfg.Host, cfg.RedisCfg.Port),
		Password: cfg.RedisCfg.Password,
		DB:       cfg.RedisCfg.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unavailable, login attempt tracking falls back to memory: %s", err)
		redisClient = nil
	}

	var publisher event.Publisher
	var securityPublisher *event.SecurityPublisher
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Printf("rabbitmq unavailable, security alerts disabled: %s", err)
	} else {
		defer rabbitConn.Close()
		securityPublisher = event.NewSecurityPublisher(rabbitConn)
		publisher = securityPublisher
	}

	var storage services.AvatarStorage
	if cfg.MinioCfg.MinioUrl != "" {
		minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			log.Printf("minio unavailable, avatar uploads disabled: %s", err)
		} else {
			storage = minioClient
		}
	}

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	logRepo := repository.NewLogRepository(db)

	tokenService := services.NewTokenService(cfg.AuthCfg, userRepo, tokenRepo, deviceRepo)
	attempts := services.NewAttemptTracker(redisClient)
	roleService := services.NewRoleService(roleRepo, permRepo, userRepo)
	userService := services.NewUserService(userRepo, roleRepo, tokenService, attempts, publisher, storage)
	logService := services.NewLogService(logRepo)

	if postgres.DB_Status {
		if err := userService.EnsureAdminAccount(context.Background(), cfg.AuthCfg.AdminUsername, cfg.AuthCfg.AdminPassword); err != nil {
			log.Printf("admin bootstrap failed: %s", err)
		}
	}

	m := handlers.NewMiddleware(tokenService, roleService, userRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obs.Instrument())
	router.Use(handlers.RequestTimeout(cfg.AuthCfg.RequestTimeout))

	router.GET("/health", func(c *gin.Context) {
		resp := gin.H{"status": "ok", "database": postgres.DB_Status}
		if securityPublisher != nil {
			resp["publisher"] = securityPublisher.GetMetrics()
			resp["publisher_healthy"] = securityPublisher.HealthCheck()
		}
		c.JSON(http.StatusOK, resp)
	})
	router.GET("/metrics", obs.MetricsHandler())

	handlers.NewAuthHandler(userService, tokenService, logService).RegisterRoutes(router, m)
	handlers.NewUserHandler(userService, logService).RegisterRoutes(router, m)
	handlers.NewRoleHandler(roleService, logService).RegisterRoutes(router, m)
	handlers.NewPermissionHandler(roleService, logService).RegisterRoutes(router, m)
	handlers.NewLogHandler(logService).RegisterRoutes(router, m)

	log.Printf("rbac service listening on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %s", err)
	}
}
