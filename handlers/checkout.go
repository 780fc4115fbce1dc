package handlers

import (
	"net/http"

	"oplugy/middleware"
	"oplugy/models"
	"oplugy/services/checkout"
	"oplugy/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentStagePath is the storefront route of the payment stage.
const PaymentStagePath = "/checkout"

type CheckoutHandler struct {
	FunnelSvc checkout.FunnelService
	Logger    *zap.Logger
}

func NewCheckoutHandler(svc checkout.FunnelService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{FunnelSvc: svc, Logger: logger}
}

func viewBody(view *checkout.View) gin.H {
	if view == nil {
		return nil
	}
	return gin.H{"funnel": view}
}

// StartFunnel handles POST /api/checkout/funnels.
func (h *CheckoutHandler) StartFunnel(c *gin.Context) {
	var body struct {
		Service models.Service    `json:"service" binding:"required"`
		Mode    models.FunnelMode `json:"mode"`
		Server  string            `json:"server"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if body.Mode == models.ModeWizard && !c.GetBool("authenticated") {
		utils.JSONNotice(c, http.StatusUnauthorized, models.WarningNotice("login_required", "Please log in to use the multi-service checkout."))
		return
	}

	view, err := h.FunnelSvc.Start(c.Request.Context(), checkout.StartRequest{
		Tab:     middleware.TabID(c),
		Service: body.Service,
		Mode:    body.Mode,
		Server:  body.Server,
	})
	if err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetFunnel handles GET /api/checkout/funnels/:id.
func (h *CheckoutHandler) GetFunnel(c *gin.Context) {
	view, err := h.FunnelSvc.Get(c.Request.Context(), middleware.TabID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SelectField handles PUT /api/checkout/funnels/:id/fields/:field.
func (h *CheckoutHandler) SelectField(c *gin.Context) {
	var body struct {
		Value *string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	view, err := h.FunnelSvc.Select(c.Request.Context(), middleware.TabID(c), c.Param("id"), models.Field(c.Param("field")), *body.Value)
	if err != nil {
		respondError(c, h.Logger, err, viewBody(view))
		return
	}
	c.JSON(http.StatusOK, view)
}

// VerifyFunnel handles POST /api/checkout/funnels/:id/verify.
func (h *CheckoutHandler) VerifyFunnel(c *gin.Context) {
	view, err := h.FunnelSvc.Verify(c.Request.Context(), middleware.TabID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, viewBody(view))
		return
	}
	c.JSON(http.StatusOK, view)
}

// SubmitFunnel handles POST /api/checkout/funnels/:id/submit.
func (h *CheckoutHandler) SubmitFunnel(c *gin.Context) {
	view, draft, err := h.FunnelSvc.Submit(c.Request.Context(), middleware.TabID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, err, viewBody(view))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"funnel":   view,
		"draft":    draft,
		"redirect": PaymentStagePath,
	})
}

// CloseFunnel handles DELETE /api/checkout/funnels/:id.
func (h *CheckoutHandler) CloseFunnel(c *gin.Context) {
	if err := h.FunnelSvc.Close(c.Request.Context(), middleware.TabID(c), c.Param("id")); err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}
