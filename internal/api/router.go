package api

import (
	"encoding/json"
	"io"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// newStrictDecoder rejects unknown JSON keys so option typos fail loudly
// instead of being silently ignored.
func newStrictDecoder(r io.Reader) *json.Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}

// NewRouter собирает HTTP роутер со всеми middleware и маршрутами API.
func NewRouter(handler *Handler, zapLogger *zap.Logger, jobLogger zerolog.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ZapLoggingMiddleware(zapLogger))

	// Переносим zerolog в контекст запроса: задачи наследуют его при старте.
	router.Use(func(c *gin.Context) {
		ctx := jobLogger.WithContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	prom := ginprometheus.NewPrometheus("webintel")
	prom.Use(router)

	router.GET("/", handler.Root)
	router.GET("/health", handler.Health)

	apiGroup := router.Group("/api")
	{
		pipelineGroup := apiGroup.Group("/pipeline")
		{
			pipelineGroup.POST("/start", handler.StartPipeline)
			pipelineGroup.GET("/status/:job_id", handler.GetStatus)
			pipelineGroup.GET("/download/:job_id", handler.Download)
			pipelineGroup.DELETE("/:job_id", handler.DeleteJob)
		}
		apiGroup.GET("/jobs", handler.ListJobs)
	}

	return router
}
