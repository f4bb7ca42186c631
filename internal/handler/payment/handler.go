package payment

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/payment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service payment.PaymentService
}

func NewHandler(service payment.PaymentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("", h.CreatePayment)
		payments.GET("", h.ListPayments)
		payments.GET("/export", h.ExportPayments)
		payments.GET("/:id", h.GetPayment)
		payments.PUT("/:id", h.UpdatePayment)
		payments.DELETE("/:id", h.DeletePayment)
	}
	r.GET("/patients/:id/payments", h.ListPatientPayments)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req model.CreatePaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.CreatePayment(c.Request.Context(), handler.CurrentPrincipal(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListPayments(c *gin.Context) {
	payments, err := h.service.ListPayments(c.Request.Context(), handler.CurrentPrincipal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) ExportPayments(c *gin.Context) {
	payments, err := h.service.ListPayments(c.Request.Context(), handler.CurrentPrincipal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	data, err := Workbook(payments)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}

	filename := fmt.Sprintf("payments-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) ListPatientPayments(c *gin.Context) {
	payments, err := h.service.ListPatientPayments(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) GetPayment(c *gin.Context) {
	p, err := h.service.GetPayment(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var req model.UpdatePaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdatePayment(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePayment(c *gin.Context) {
	if err := h.service.DeletePayment(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id")); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
