package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler is mounted on the engine root, outside authentication.
type PublicHandler interface {
	RegisterRoutes(gin.IRouter)
}

type RouterConfig struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	StaticDir  string
	IndexFile  string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	public   []PublicHandler
	handlers []Handler
	config   RouterConfig
}

// NewRouter builds the engine and its global middleware chain. m may be nil.
func NewRouter(
	auth *middleware.AuthMiddleware,
	public []PublicHandler,
	handlers []Handler,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	engine := gin.New()
	middleware.RegisterValidators()

	r := &Router{
		engine:   engine,
		auth:     auth,
		public:   public,
		handlers: handlers,
		config:   config,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if m != nil {
		engine.Use(middleware.Metrics(m))
	}
	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("route not found"))
	})

	return r
}

func (r *Router) Setup() {
	for _, h := range r.public {
		h.RegisterRoutes(r.engine)
	}
	r.setupStatic()

	api := r.engine.Group("/api")
	api.Use(r.auth.Authenticate())
	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
}

func (r *Router) setupStatic() {
	if r.config.StaticDir != "" {
		r.engine.Static("/static", r.config.StaticDir)
	}
	if r.config.IndexFile != "" {
		index := r.config.IndexFile
		r.engine.GET("/", func(c *gin.Context) {
			c.File(index)
		})
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
