package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"leadflow/internal/authz"
	"leadflow/internal/handlers"
	"leadflow/internal/middleware"
)

type Options struct {
	JWTSecret []byte
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Swagger  bool
}

func SetupRoutes(
	r *gin.Engine,
	opts Options,
	workflowHandler *handlers.WorkflowHandler,
	notificationHandler *handlers.NotificationHandler, // может быть nil
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// ---- protected
	wf := r.Group("/workflow", middleware.Auth(opts.JWTSecret), middleware.ReadOnlyGuard())
	{
		wf.GET("/stages", workflowHandler.Stages)
		wf.POST("/leads", workflowHandler.CreateLead)

		leads := wf.Group("/leads/:id")
		leads.GET("/history", workflowHandler.History)
		leads.GET("/history.pdf", workflowHandler.HistoryPDF)
		leads.GET("/transitions", workflowHandler.Available)
		leads.POST("/transition", workflowHandler.Transition)
		leads.POST("/reactivate", middleware.RequireRole(authz.IsElevated), workflowHandler.Reactivate)

		if notificationHandler != nil {
			wf.GET("/notifications/ws", notificationHandler.Stream)
		}
	}
	return r
}
