package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storykeeper/internal/store"
	"github.com/imrishuroy/storykeeper/internal/validation"
)

// RegisterUserRoutes registers identity and profile routes.
func RegisterUserRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	log := cfg.Logger

	issue := []gin.HandlerFunc{}
	if cfg.IssueLimiter != nil {
		issue = append(issue, cfg.IssueLimiter)
	}

	// Identity upsert: merge the profile and hand back a fresh token.
	r.PUT("/user/:email", append(issue, func(c *gin.Context) {
		email := c.Param("email")
		if err := v.Var(email, "required,email"); err != nil {
			writeError(c, http.StatusBadRequest, "validation_failed", "path email is not a valid address")
			return
		}

		doc, err := validation.BindDocument(c)
		if err != nil {
			return
		}
		delete(doc, "email")
		delete(doc, "_id")
		doc["updated_at"] = time.Now().UTC()

		result, err := cfg.Store.Upsert(c.Request.Context(), store.Users, email, store.Document(doc))
		if err != nil {
			persistenceFailed(c, log, err)
			return
		}

		token, err := cfg.Tokens.Issue(email)
		if err != nil {
			_ = c.Error(err)
			writeError(c, http.StatusInternalServerError, "token_issue_failed", "could not issue token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result, "token": token})
	})...)

	self := []gin.HandlerFunc{cfg.Gate.Authenticated(), cfg.Gate.Self("email")}

	r.PATCH("/user/:email", append(self, func(c *gin.Context) {
		doc, err := validation.BindDocument(c)
		if err != nil {
			return
		}
		delete(doc, "email")
		delete(doc, "_id")
		if len(doc) == 0 {
			writeError(c, http.StatusBadRequest, "validation_failed", "no fields to update")
			return
		}
		doc["updated_at"] = time.Now().UTC()

		n, err := cfg.Store.UpdateMatching(c.Request.Context(), store.Users,
			store.Filter{"email": c.Param("email")}, store.Document(doc))
		if err != nil {
			persistenceFailed(c, log, err)
			return
		}
		if n == 0 {
			notFound(c, "profile")
			return
		}
		c.JSON(http.StatusOK, gin.H{"matchedCount": n})
	})...)

	r.GET("/user/:email", append(self, func(c *gin.Context) {
		var profile map[string]any
		err := cfg.Store.FindByKey(c.Request.Context(), store.Users, c.Param("email"), &profile)
		if errors.Is(err, store.ErrNotFound) {
			notFound(c, "profile")
			return
		}
		if err != nil {
			persistenceFailed(c, log, err)
			return
		}
		delete(profile, "_id")
		c.JSON(http.StatusOK, profile)
	})...)

	r.GET("/user/:email/orders", append(self, func(c *gin.Context) {
		list, err := cfg.Orders.ListByEmail(c.Request.Context(), c.Param("email"))
		if err != nil {
			persistenceFailed(c, log, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})...)
}
