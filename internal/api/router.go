package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *AuthHandler,
	mailHandler *MailHandler,
	feedbackHandler *FeedbackHandler,
	vipHandler *VIPHandler,
	digestHandler *DigestHandler,
	budgetHandler *BudgetHandler,
	prefsHandler *PrefsHandler,
	jwtSecret string,
) *Router {
	r := gin.Default()
	r.Use(TraceMiddleware())

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/emails/ingest", mailHandler.Ingest)
		auth.GET("/emails/:id/score", mailHandler.GetScore)
		auth.POST("/emails/:id/score", mailHandler.Score)
		auth.POST("/emails/rescore", mailHandler.Rescore)

		auth.POST("/feedback", feedbackHandler.Submit)

		auth.GET("/vips", vipHandler.List)
		auth.PUT("/vips", vipHandler.Upsert)
		auth.POST("/vips/:id/confirm", vipHandler.Confirm)
		auth.DELETE("/vips/:id", vipHandler.Delete)

		auth.POST("/digests/generate", digestHandler.Generate)
		auth.GET("/digests/:id", digestHandler.Get)
		auth.POST("/digests/:id/actions", digestHandler.ExecuteActions)

		auth.GET("/budget", budgetHandler.Status)

		auth.GET("/prefs", prefsHandler.Get)
		auth.PUT("/prefs", prefsHandler.Update)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
