package router

import (
	"net/http"

	"olafo/config"
	"olafo/controllers"
	dbpkg "olafo/db"
	"olafo/metrics"
	"olafo/middleware"
	"olafo/models"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the already-built pieces the routes are wired to.
type Dependencies struct {
	Config  config.Configuration
	Logger  zerolog.Logger
	Webhook *controllers.WebhookController
	Chat    *controllers.ChatController
	Journal *gorm.DB // nil unless JOURNAL=database
}

// Initialize wires all routes and middlewares.
// Public: webhook (/ and /webhook), minimal chat variant, health, metrics.
// Admin (optional): journal listing behind a bearer token.
func Initialize(r *gin.Engine, deps Dependencies) {
	log := deps.Logger

	r.Use(middleware.Metrics())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("internal error")
		metrics.RelayOutcomes.WithLabelValues(models.EVENT_OUTCOME_INTERNAL_ERROR).Inc()
		controllers.RespondText(c, http.StatusInternalServerError, controllers.BodyInternalError)
		c.Abort()
	}))
	r.Use(Logger(log))

	r.NoRoute(controllers.NotFound)

	r.GET("/health", func(c *gin.Context) {
		controllers.RespondText(c, http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, path := range []string{"/", "/webhook"} {
		r.GET(path, deps.Webhook.Verify)
		r.POST(path, deps.Webhook.Update)
	}

	r.GET("/chat", deps.Chat.Instructions)
	r.POST("/chat", deps.Chat.Reply)

	if deps.Config.AdminEnabled() && deps.Journal != nil {
		api := r.Group("/api", middleware.CORSMiddleware(deps.Config.CORSAllowedOrigins))
		preflight := func(c *gin.Context) {}
		api.OPTIONS("/events", preflight)
		api.OPTIONS("/events/:id", preflight)

		admin := api.Group("", dbpkg.Inject(deps.Journal), Adminizer(deps.Config.AdminToken))
		admin.GET("/events", controllers.GetEvents)
		admin.GET("/events/:id", controllers.GetEventByID)
		log.Info().Msg("admin journal routes enabled")
	}

	log.Info().Msg("routes initialized")
}
