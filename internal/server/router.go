package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"iprescribe-console/internal/apiclient"
	"iprescribe-console/internal/dashboard"
	"iprescribe-console/internal/handler"
	"iprescribe-console/internal/hub"
	"iprescribe-console/internal/logger"
	"iprescribe-console/internal/metrics"
	"iprescribe-console/internal/middleware"
	"iprescribe-console/internal/session"
)

type Deps struct {
	Session *session.Manager
	Queries *dashboard.Queries
	Hub     *hub.Hub
	Themes  handler.ThemeStore
	Logger  *slog.Logger
	Version string

	// LoginLimiter throttles login form submissions. Defaults to 10 per
	// minute per client.
	LoginLimiter *middleware.RateLimiter
}

func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.LoginLimiter == nil {
		deps.LoginLimiter = middleware.NewRateLimiter(10, time.Minute)
	}

	pages, err := handler.NewPages(deps.Themes, deps.Queries, deps.Logger)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(requestID())
	r.Use(metrics.Instrument())
	r.Use(session.Provide(deps.Session))

	versionHandler := &handler.VersionHandler{Version: deps.Version}
	if deps.Hub != nil {
		versionHandler.Pages = deps.Hub
	}
	r.GET("/health", versionHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/", pages.Landing)
	r.GET(session.RouteLogin, pages.LoginForm)
	r.POST(session.RouteLogin, middleware.RateLimitMiddleware(deps.LoginLimiter), pages.LoginSubmit)
	r.POST("/logout", pages.Logout)
	r.GET(middleware.RouteUnauthorized, pages.Unauthorized)
	r.POST("/theme", pages.ToggleTheme)

	if deps.Hub != nil {
		navHandler := &handler.NavigationHandler{Hub: deps.Hub}
		r.GET("/ws", navHandler.Serve)
	}

	admin := r.Group(session.RouteDashboard)
	admin.Use(middleware.RequireSession(true))
	admin.GET("", pages.Dashboard)
	admin.GET("/patients", pages.Patients)
	admin.GET("/patients/:id", pages.Patient)
	admin.POST("/patients/:id/status", pages.UpdatePatientStatus)

	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, "/")
	})

	return r, nil
}

// requestID tags every request with an id that is echoed to the browser,
// attached to log records and forwarded to the API.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(apiclient.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(apiclient.RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
