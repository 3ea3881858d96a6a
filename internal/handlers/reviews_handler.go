package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storykeeper/internal/store"
	"github.com/imrishuroy/storykeeper/internal/validation"
)

// RegisterReviewRoutes registers review submission and listing.
func RegisterReviewRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/reviews", func(c *gin.Context) {
		list := []map[string]any{}
		if err := cfg.Store.FindMatching(c.Request.Context(), store.Reviews, nil, &list); err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	r.POST("/reviews", cfg.Gate.Authenticated(), func(c *gin.Context) {
		doc, err := validation.BindDocument(c)
		if err != nil {
			return
		}
		delete(doc, "_id")
		// reviews are attributed to the caller, whatever the body says
		doc["email"] = subject(c)
		doc["created_at"] = time.Now().UTC()

		id, err := cfg.Store.Insert(c.Request.Context(), store.Reviews, store.Document(doc))
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"insertedId": id})
	})
}
