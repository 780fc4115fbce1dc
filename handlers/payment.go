package handlers

import (
	"net/http"

	"oplugy/middleware"
	"oplugy/services/payment"
	"oplugy/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	PaymentSvc payment.PaymentService
	Logger     *zap.Logger
}

func NewPaymentHandler(svc payment.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{PaymentSvc: svc, Logger: logger}
}

type referenceBody struct {
	Reference string `json:"reference" binding:"required"`
}

// GetCheckout handles GET /api/checkout/payment. With no handed-off draft it
// answers 404 with a redirect to the service selection and no checkout form.
func (h *PaymentHandler) GetCheckout(c *gin.Context) {
	co, err := h.PaymentSvc.Begin(c.Request.Context(), middleware.TabID(c))
	if err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, co)
}

// InitiatePayment handles POST /api/checkout/payment.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	session, co, err := h.PaymentSvc.Initiate(c.Request.Context(), middleware.TabID(c))
	if err != nil {
		var body gin.H
		if co != nil {
			body = gin.H{"checkout": co}
		}
		respondError(c, h.Logger, err, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  session,
		"checkout": co,
	})
}

// PaymentCallback handles POST /api/checkout/payment/callback.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	var body referenceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	done, err := h.PaymentSvc.Complete(c.Request.Context(), middleware.TabID(c), body.Reference)
	if err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, done)
}

// CancelPayment handles POST /api/checkout/payment/cancel.
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	var body referenceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	co, notice, err := h.PaymentSvc.Cancel(c.Request.Context(), middleware.TabID(c), body.Reference)
	if err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkout": co,
		"notice":   notice,
	})
}
