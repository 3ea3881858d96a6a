package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/storykeeper/internal/payment"
	"github.com/imrishuroy/storykeeper/internal/validation"
)

// RegisterPaymentRoutes registers payment intent creation.
func RegisterPaymentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/create-payment-intent", cfg.Gate.Authenticated(), func(c *gin.Context) {
		if cfg.Payments == nil {
			writeError(c, http.StatusServiceUnavailable, "payment_unavailable", "payments are not configured")
			return
		}

		var req validation.PaymentIntentRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		amount, err := payment.ToMinorUnits(req.Price)
		if err != nil {
			writeError(c, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		intent, err := cfg.Payments.CreateIntent(c.Request.Context(), amount, req.Currency)
		if err != nil {
			_ = c.Error(err)
			message := "payment processor unavailable"
			var pe *payment.ProcessorError
			if errors.As(err, &pe) {
				message = pe.Message
			}
			cfg.Logger.Warn("payment intent failed", zap.String("subject", subject(c)), zap.Error(err))
			writeError(c, http.StatusBadGateway, "payment_processor_error", message)
			return
		}
		c.JSON(http.StatusOK, gin.H{"clientSecret": intent.ClientSecret})
	})
}
