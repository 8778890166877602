package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/VictorGoic0/SpendSense/internal/http/handlers"
	httpMW "github.com/VictorGoic0/SpendSense/internal/http/middleware"
	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler         *httpH.HealthHandler
	IngestHandler         *httpH.IngestHandler
	UserHandler           *httpH.UserHandler
	FeatureHandler        *httpH.FeatureHandler
	PersonaHandler        *httpH.PersonaHandler
	ConsentHandler        *httpH.ConsentHandler
	ProductHandler        *httpH.ProductHandler
	RecommendationHandler *httpH.RecommendationHandler
	EvaluationHandler     *httpH.EvaluationHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.Tracing("spendsense-api"))
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/", cfg.HealthHandler.Root)
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Ingestion
		if cfg.IngestHandler != nil {
			api.POST("/ingest", cfg.IngestHandler.Ingest)
		}

		// Users + profile
		if cfg.UserHandler != nil {
			api.GET("/users", cfg.UserHandler.ListUsers)
			api.GET("/users/:user_id", cfg.UserHandler.GetUser)
			api.GET("/profile/:user_id", cfg.UserHandler.GetProfile)
			api.GET("/operator/dashboard", cfg.UserHandler.Dashboard)
		}

		// Signal detection
		if cfg.FeatureHandler != nil {
			api.POST("/features/compute/:user_id", cfg.FeatureHandler.Compute)
			api.GET("/features/:user_id", cfg.FeatureHandler.ListFeatures)
		}

		// Persona assignment
		if cfg.PersonaHandler != nil {
			api.POST("/personas/:user_id/assign", cfg.PersonaHandler.Assign)
			api.GET("/personas/:user_id", cfg.PersonaHandler.ListPersonas)
		}

		// Consent
		if cfg.ConsentHandler != nil {
			api.POST("/consent", cfg.ConsentHandler.UpdateConsent)
			api.GET("/consent/:user_id", cfg.ConsentHandler.GetConsent)
		}

		// Product catalog + matching
		if cfg.ProductHandler != nil {
			api.GET("/products", cfg.ProductHandler.ListProducts)
			api.POST("/products", cfg.ProductHandler.CreateProduct)
			api.GET("/products/match/:user_id", cfg.ProductHandler.MatchProducts)
			api.GET("/products/:product_id", cfg.ProductHandler.GetProduct)
			api.PUT("/products/:product_id", cfg.ProductHandler.UpdateProduct)
			api.DELETE("/products/:product_id", cfg.ProductHandler.DeleteProduct)
		}

		// Recommendations + operator review
		if cfg.RecommendationHandler != nil {
			api.POST("/recommendations/generate/:user_id", cfg.RecommendationHandler.Generate)
			api.POST("/recommendations/bulk-approve", cfg.RecommendationHandler.BulkApprove)
			api.GET("/recommendations/:user_id", cfg.RecommendationHandler.ListRecommendations)
			api.POST("/recommendations/:recommendation_id/approve", cfg.RecommendationHandler.Approve)
			api.POST("/recommendations/:recommendation_id/override", cfg.RecommendationHandler.Override)
			api.POST("/recommendations/:recommendation_id/reject", cfg.RecommendationHandler.Reject)
		}

		// Evaluation
		if cfg.EvaluationHandler != nil {
			api.POST("/evaluate", cfg.EvaluationHandler.Run)
			api.GET("/evaluate/latest", cfg.EvaluationHandler.Latest)
			api.GET("/evaluate/history", cfg.EvaluationHandler.History)
		}
	}

	return r
}
