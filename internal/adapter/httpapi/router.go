package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
)

type RouterConfig struct {
	Handler        *Handler
	AuthMiddleware *AuthMiddleware
	Log            *logger.Logger
	Metrics        http.Handler // served on /metrics when set
	AllowOrigins   []string
	ServiceName    string
	DevTokens      bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "rebuildfund"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(RequestLogger(log))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", IdempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := cfg.Handler
	am := cfg.AuthMiddleware

	// Public
	router.GET("/healthz", h.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/v1")
	v1.Use(am.Authenticate())
	if cfg.DevTokens {
		v1.POST("/dev/token", h.IssueDevToken)
	}
	v1.GET("/projects", h.ListProjects)
	v1.GET("/projects/:id", h.GetProject)
	v1.GET("/projects/:id/report", h.ProjectReport)

	// Protected; roles are enforced by the use cases
	protected := v1.Group("")
	protected.Use(am.RequireAuth())
	protected.POST("/projects", h.CreateProject)
	protected.DELETE("/projects/:id", h.DeleteProject)
	protected.POST("/projects/:id/image", h.UploadProjectImage)
	protected.POST("/projects/:id/review", h.ReviewProject)
	protected.POST("/projects/:id/investments", h.Invest)
	protected.GET("/projects/:id/investments", h.ListProjectInvestments)
	protected.POST("/investments/:id/transition", h.TransitionInvestment)
	protected.GET("/me/projects", h.ListMyProjects)
	protected.GET("/me/investments", h.ListMyInvestments)
	protected.GET("/me/portfolio", h.Portfolio)
	protected.GET("/me/summary", h.OwnerSummary)

	return router
}
