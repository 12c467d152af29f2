package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/schoolhealth/internal/handler/prometheus"
	"github.com/jwalitptl/schoolhealth/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine     *gin.Engine
	healthH    Handler
	medication Handler
	batch      Handler
	prom       *prometheus.Handler
}

type RouterConfig struct {
	Mode       string
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	SizeLimit  middleware.SizeLimitConfig
}

func NewRouter(
	healthH Handler,
	medicationH Handler,
	batchH Handler,
	prom *prometheus.Handler,
	config RouterConfig,
) *Router {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)

	engine := gin.New()

	r := &Router{
		engine:     engine,
		healthH:    healthH,
		medication: medicationH,
		batch:      batchH,
		prom:       prom,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Actor(),
		middleware.Logger(),
		prom.Middleware(),
		middleware.CORS(config.CORSConfig),
		middleware.ErrorHandler(),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	if config.SizeLimit.MaxBodySize == 0 {
		config.SizeLimit = middleware.DefaultSizeLimitConfig()
	}
	engine.Use(middleware.SizeLimit(config.SizeLimit))

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	api.GET("/metrics", r.prom.Handler())

	records := api.Group("")
	records.Use(middleware.NoStore())
	r.medication.RegisterRoutes(records)
	r.batch.RegisterRoutes(records)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
