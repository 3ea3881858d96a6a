package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storykeeper/internal/store"
	"github.com/imrishuroy/storykeeper/internal/validation"
)

func cartKey(email, printID string) string { return email + ":" + printID }

// RegisterCartRoutes registers the caller's temporary cart lines.
func RegisterCartRoutes(r *gin.Engine, cfg HandlerConfig) {
	g := r.Group("/cart", cfg.Gate.Authenticated())

	g.PUT("/:printId", func(c *gin.Context) {
		doc, err := validation.BindDocument(c)
		if err != nil {
			return
		}
		email := subject(c)
		printID := c.Param("printId")
		delete(doc, "_id")
		doc["email"] = email
		doc["print_id"] = printID
		doc["updated_at"] = time.Now().UTC()

		result, err := cfg.Store.Upsert(c.Request.Context(), store.Carts, cartKey(email, printID), store.Document(doc))
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result})
	})

	g.GET("", func(c *gin.Context) {
		lines := []map[string]any{}
		if err := cfg.Store.FindMatching(c.Request.Context(), store.Carts, store.Filter{"email": subject(c)}, &lines); err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, lines)
	})

	g.DELETE("", func(c *gin.Context) {
		n, err := cfg.Store.DeleteMatching(c.Request.Context(), store.Carts, store.Filter{"email": subject(c)})
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deletedCount": n})
	})

	g.DELETE("/:printId", func(c *gin.Context) {
		email := subject(c)
		n, err := cfg.Store.DeleteMatching(c.Request.Context(), store.Carts,
			store.Filter{"_id": cartKey(email, c.Param("printId")), "email": email})
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		if n == 0 {
			notFound(c, "cart line")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deletedCount": n})
	})
}
