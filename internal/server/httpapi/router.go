// Package httpapi is the public HTTP surface: registration, login, profiles
// and account read-back, plus health and Prometheus endpoints.
package httpapi

import (
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/logging"
	"github.com/gin-gonic/gin"
)

const metricsPath = "/metrics"

type RouterConfig struct {
	Accounts       AccountService
	Profiles       ProfileService
	Metrics        *Metrics
	Logger         logging.Logger
	SecretKey      []byte
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	h := &Handler{accounts: cfg.Accounts, profiles: cfg.Profiles, metrics: cfg.Metrics}

	route := gin.New()
	route.Use(gin.Recovery())
	route.Use(RequestLogger(cfg.Logger.With("module", "http")))
	route.Use(cfg.Metrics.Instrumentation())

	route.GET(metricsPath, gin.WrapH(cfg.Metrics.Handler()))
	route.GET("/healthz", h.Health)

	api := route.Group("/")
	api.Use(Timeout(cfg.RequestTimeout))
	api.POST("/register/user", h.Register)
	api.POST("/auth/login", h.Login)

	protected := api.Group("/")
	protected.Use(BearerAuth(cfg.SecretKey))
	protected.POST("/profile", h.CreateProfile)
	protected.GET("/get_user_data/:id", h.GetUserData)

	return route
}
