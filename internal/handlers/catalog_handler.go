package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/cache"
	"github.com/imrishuroy/storykeeper/internal/store"
	"github.com/imrishuroy/storykeeper/internal/validation"
)

const jsonContentType = "application/json; charset=utf-8"

func catalogKey(c store.Collection) string { return "catalog:" + c.Name }

// catalog serves collection listings through an optional cache. Cache
// failures fall back to the store.
type catalog struct {
	db    store.Store
	cache cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

func (k *catalog) list(ctx context.Context, c store.Collection) ([]byte, error) {
	if k.cache != nil {
		s, err := k.cache.GetString(ctx, catalogKey(c))
		if err == nil {
			return []byte(s), nil
		}
		if !cache.IsMiss(err) {
			k.log.Warn("catalog cache read failed", zap.String("collection", c.Name), zap.Error(err))
		}
	}

	docs := []map[string]any{}
	if err := k.db.FindMatching(ctx, c, nil, &docs); err != nil {
		return nil, err
	}
	body, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}

	if k.cache != nil {
		if err := k.cache.SetString(ctx, catalogKey(c), string(body), k.ttl); err != nil {
			k.log.Warn("catalog cache write failed", zap.String("collection", c.Name), zap.Error(err))
		}
	}
	return body, nil
}

func (k *catalog) invalidate(ctx context.Context, c store.Collection) {
	if k.cache == nil {
		return
	}
	if err := k.cache.Delete(ctx, catalogKey(c)); err != nil {
		k.log.Warn("catalog cache invalidation failed", zap.String("collection", c.Name), zap.Error(err))
	}
}

// RegisterCatalogRoutes registers service and print listings. Adding items
// is reserved for the owner.
func RegisterCatalogRoutes(r *gin.Engine, cfg HandlerConfig) {
	k := &catalog{db: cfg.Store, cache: cfg.Cache, ttl: cfg.CacheTTL, log: cfg.Logger}

	listing := func(coll store.Collection) gin.HandlerFunc {
		return func(c *gin.Context) {
			body, err := k.list(c.Request.Context(), coll)
			if err != nil {
				persistenceFailed(c, cfg.Logger, err)
				return
			}
			c.Data(http.StatusOK, jsonContentType, body)
		}
	}

	add := func(coll store.Collection) gin.HandlerFunc {
		return func(c *gin.Context) {
			doc, err := validation.BindDocument(c)
			if err != nil {
				return
			}
			delete(doc, "_id")
			if len(doc) == 0 {
				writeError(c, http.StatusBadRequest, "validation_failed", "empty document")
				return
			}

			ctx := c.Request.Context()
			id, err := cfg.Store.Insert(ctx, coll, store.Document(doc))
			if err != nil {
				persistenceFailed(c, cfg.Logger, err)
				return
			}
			k.invalidate(ctx, coll)
			c.JSON(http.StatusCreated, gin.H{"insertedId": id})
		}
	}

	r.GET("/services", listing(store.Services))
	r.GET("/prints", listing(store.Prints))

	r.GET("/services/:id", func(c *gin.Context) {
		var doc map[string]any
		err := cfg.Store.FindByKey(c.Request.Context(), store.Services, c.Param("id"), &doc)
		if errors.Is(err, store.ErrNotFound) {
			notFound(c, "service")
			return
		}
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	owner := []gin.HandlerFunc{cfg.Gate.Authenticated(), cfg.Gate.Owner()}
	r.POST("/services", append(owner, add(store.Services))...)
	r.POST("/prints", append(owner, add(store.Prints))...)
}
