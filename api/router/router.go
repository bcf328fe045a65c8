package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/circuitinfopro/circuitinfopro/api/handler"
	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/internal/service"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, collectorService *service.CollectorService) (*gin.Engine, error) {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	// 创建路由引擎
	r := gin.New()

	// 添加中间件
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	// 创建处理器
	collectorHandler := handler.NewCollectorHandler(collectorService)
	runHandler := handler.NewRunHandler()
	deviceHandler := handler.NewDeviceHandler()
	extractHandler, err := handler.NewExtractHandler(cfg)
	if err != nil {
		return nil, err
	}

	// 根路径
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Circuit Info Pro",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 健康检查与统计
		v1.GET("/health", collectorHandler.Health)
		v1.GET("/stats", collectorHandler.Stats)

		// 采集相关路由
		collector := v1.Group("/collector")
		{
			collector.POST("/run", collectorHandler.Run)
		}

		// 运行历史路由
		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:run_id", runHandler.GetRun)
			runs.GET("/:run_id/failures", runHandler.GetRunFailures)
			runs.GET("/:run_id/logs", runHandler.GetRunLogs)
		}

		// 设备台账路由
		devices := v1.Group("/devices")
		{
			devices.GET("", deviceHandler.ListDevices)
			devices.GET("/:address", deviceHandler.GetDevice)
		}

		// 离线抽取路由
		extractGroup := v1.Group("/extract")
		{
			extractGroup.POST("/circuits", extractHandler.Circuits)
			extractGroup.POST("/fields", extractHandler.Fields)
		}
	}

	// 404处理
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r, nil
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     statusCode,
			"duration":   duration.String(),
			"client_ip":  c.ClientIP(),
		})
		if statusCode >= 400 {
			entry.Warn("HTTP request failed")
		} else {
			entry.Info("HTTP request")
		}
	}
}
