package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/orders"
	"github.com/imrishuroy/storykeeper/internal/validation"
)

const maxIdempotencyKeyLen = 255

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/orders", func(c *gin.Context) {
		// Require idempotency key header
		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" {
			writeError(c, http.StatusBadRequest, "missing_idempotency_key", "Idempotency-Key header is required")
			return
		}
		if len(idempKey) > maxIdempotencyKeyLen {
			writeError(c, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key is too long")
			return
		}

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		items := make([]orders.LineItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, orders.LineItem{
				PrintID:  it.PrintID,
				Title:    it.Title,
				Quantity: it.Quantity,
				Price:    it.Price,
			})
		}

		out, err := cfg.Workflow.Submit(c.Request.Context(), idempKey, orders.Submission{
			Email:         req.Email,
			Name:          req.Name,
			Items:         items,
			Total:         req.Total,
			TransactionID: req.TransactionID,
		})
		switch {
		case errors.Is(err, orders.ErrInProgress):
			writeError(c, http.StatusConflict, "request_in_progress", "a request with this Idempotency-Key is still in progress")
			return
		case err != nil:
			persistenceFailed(c, cfg.Logger, err)
			return
		}

		c.Header("Location", fmt.Sprintf("/orders/%s", out.Order.ID))
		if out.Replayed {
			c.Header("Idempotent-Replayed", "true")
			c.JSON(http.StatusOK, out.Order)
			return
		}
		c.JSON(http.StatusCreated, out.Order)
	})

	owner := []gin.HandlerFunc{cfg.Gate.Authenticated(), cfg.Gate.Owner()}

	r.GET("/orders", append(owner, func(c *gin.Context) {
		list, err := cfg.Orders.List(c.Request.Context())
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})...)

	// Buyers may read their own orders; the owner may read any.
	r.GET("/orders/:id", cfg.Gate.Authenticated(), func(c *gin.Context) {
		o, err := cfg.Orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		if o == nil {
			notFound(c, "order")
			return
		}
		if caller := subject(c); o.Email != caller && !cfg.Owner.IsOwner(caller) {
			writeError(c, http.StatusForbidden, "forbidden", "Forbidden access")
			return
		}
		c.JSON(http.StatusOK, o)
	})

	r.PATCH("/orders/:id", append(owner, func(c *gin.Context) {
		var req validation.UpdateOrderStatusRequest
		if c.Request.ContentLength != 0 {
			if err := validation.BindAndValidate(c, &req, v); err != nil {
				return
			}
		}

		o, changed, err := cfg.Orders.Ship(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, orders.ErrNotFound):
			notFound(c, "order")
			return
		case errors.Is(err, orders.ErrStatusMismatch):
			writeError(c, http.StatusConflict, "invalid_status_transition", "order cannot move to Shipped")
			return
		case err != nil:
			persistenceFailed(c, cfg.Logger, err)
			return
		}
		if !changed {
			cfg.Logger.Debug("order already shipped", zap.String("order_id", o.ID))
		}
		c.JSON(http.StatusOK, o)
	})...)
}
