package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/auth"
	"github.com/imrishuroy/storykeeper/internal/cache"
	"github.com/imrishuroy/storykeeper/internal/orders"
	"github.com/imrishuroy/storykeeper/internal/payment"
	"github.com/imrishuroy/storykeeper/internal/store"
)

// HandlerConfig groups dependencies for the route handlers.
type HandlerConfig struct {
	Store    store.Store
	Tokens   *auth.Tokens
	Gate     *auth.Gate
	Owner    auth.OwnerPolicy
	Orders   *orders.Store
	Workflow *orders.Workflow

	// Payments is nil when no processor is configured.
	Payments payment.Issuer
	// Cache is nil when Redis is not configured.
	Cache    cache.Store
	CacheTTL time.Duration
	// IssueLimiter guards identity issuance. Optional.
	IssueLimiter gin.HandlerFunc

	Logger *zap.Logger
}

// Register wires every route group onto r.
func Register(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	RegisterUserRoutes(r, cfg)
	RegisterCatalogRoutes(r, cfg)
	RegisterReviewRoutes(r, cfg)
	RegisterPaymentRoutes(r, cfg)
	RegisterOrdersRoutes(r, cfg)
	RegisterCartRoutes(r, cfg)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// persistenceFailed logs err and answers 500 without leaking store details.
func persistenceFailed(c *gin.Context, log *zap.Logger, err error) {
	_ = c.Error(err)
	log.Error("store operation failed",
		zap.String("route", c.FullPath()),
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err),
	)
	writeError(c, http.StatusInternalServerError, "persistence_failed", "could not reach the data store")
}

func notFound(c *gin.Context, what string) {
	writeError(c, http.StatusNotFound, "not_found", what+" not found")
}

// subject returns the authenticated caller. Routes using it sit behind
// Gate.Authenticated, so a missing subject is a wiring bug.
func subject(c *gin.Context) string {
	s, _ := auth.Subject(c)
	return s
}
