package rest

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/robalyx/draftguard/internal/database"
	"github.com/robalyx/draftguard/internal/rest/handler"
	"github.com/robalyx/draftguard/internal/rest/middleware/header"
	"github.com/robalyx/draftguard/internal/rest/middleware/ip"
	"github.com/robalyx/draftguard/internal/rest/middleware/ratelimit"
	"github.com/robalyx/draftguard/internal/review"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Dependencies are the services behind the REST API.
type Dependencies struct {
	Models     database.Models
	Observer   handler.PickObserver
	Queue      handler.CompletionQueue
	Review     *review.Service
	Authorizer review.Authorizer
	Batch      handler.BatchRunner
}

// Server implements the REST API service.
type Server struct {
	handler       http.Handler
	rateLimiter   *ratelimit.Middleware
	draftHandler  *handler.DraftHandler
	reviewHandler *handler.ReviewHandler
	jobHandler    *handler.JobHandler
}

// NewServer creates a new REST API server.
func NewServer(deps Dependencies, logger *zap.Logger, config *config.APIConfig) *Server {
	// Create server instance with handlers
	server := &Server{
		draftHandler:  handler.NewDraftHandler(deps.Models, deps.Observer, deps.Queue, logger),
		reviewHandler: handler.NewReviewHandler(deps.Review, deps.Authorizer, config.MaxPageSize, logger),
		jobHandler:    handler.NewJobHandler(deps.Batch, logger),
	}

	// Create middleware instances
	headerMiddleware := header.New(logger)
	ipMiddleware := ip.New(logger, &config.IP)
	server.rateLimiter = ratelimit.New(&config.RateLimit, logger)

	// Create base router
	router := bunrouter.New()

	// Create API routes group
	router.Use(
		headerMiddleware.AsRESTMiddleware,
		ipMiddleware.AsRESTMiddleware,
		server.rateLimiter.AsRESTMiddleware,
	).WithGroup("/v1", func(g *bunrouter.Group) {
		g.POST("/drafts/:id/picks", server.draftHandler.RecordPick)
		g.POST("/drafts/:id/complete", server.draftHandler.CompleteDraft)

		g.Use(server.reviewHandler.RequireAdmin).WithGroup("/review", func(g *bunrouter.Group) {
			g.GET("/drafts", server.reviewHandler.ListDrafts)
			g.GET("/drafts/:id", server.reviewHandler.GetDraft)
			g.GET("/pairs", server.reviewHandler.ListPairs)
			g.GET("/pairs/:id", server.reviewHandler.GetPair)
			g.POST("/actions", server.reviewHandler.RecordAction)
			g.GET("/actions", server.reviewHandler.ListActions)
			g.GET("/actions/:id/attempts", server.reviewHandler.GetAttempts)
			g.POST("/actions/:id/retry", server.reviewHandler.RetryEnforcement)
		})

		g.Use(server.reviewHandler.RequireAdmin).WithGroup("/jobs", func(g *bunrouter.Group) {
			g.POST("/cross-draft", server.jobHandler.RunCrossDraft)
		})
	})

	// Add gzip compression
	server.handler = gzhttp.GzipHandler(router)
	return server
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

// Close releases the rate limiter state.
func (s *Server) Close() {
	s.rateLimiter.Close()
}
