package visit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/service/visit"
)

type Handler struct {
	service visit.VisitService
}

func NewHandler(service visit.VisitService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/visits", h.ListVisits)
	r.GET("/visits/:id", h.GetVisit)
	r.GET("/patients/:id/visits", h.ListPatientVisits)
}

func (h *Handler) ListVisits(c *gin.Context) {
	visits, err := h.service.ListVisits(c.Request.Context(), handler.CurrentPrincipal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visits)
}

func (h *Handler) GetVisit(c *gin.Context) {
	v, err := h.service.GetVisit(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPatientVisits(c *gin.Context) {
	visits, err := h.service.ListPatientVisits(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visits)
}
