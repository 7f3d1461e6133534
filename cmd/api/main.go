package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ntjsa/studentcrm/internal/handler"
	"github.com/ntjsa/studentcrm/internal/middleware"
	"github.com/ntjsa/studentcrm/internal/repository"
	"github.com/ntjsa/studentcrm/internal/service"
	"github.com/ntjsa/studentcrm/pkg/config"
	"github.com/ntjsa/studentcrm/pkg/database"
	"github.com/ntjsa/studentcrm/pkg/logger"
	corsmiddleware "github.com/ntjsa/studentcrm/pkg/middleware/cors"
	reqidmiddleware "github.com/ntjsa/studentcrm/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()
	db, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to mongodb", "error", err)
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to ensure indexes", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db, metricsSvc)
	courseRepo := repository.NewCourseRepository(db, metricsSvc)

	studentSvc := service.NewStudentService(studentRepo, courseRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, studentRepo, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Client().Ping(c.Request.Context(), nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	v1 := r.Group("/v1")
	handler.NewStudentHandler(studentSvc).Register(v1)
	handler.NewCourseHandler(courseSvc).Register(v1)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
