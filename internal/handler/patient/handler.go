package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/search", h.SearchPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)

		patients.GET("/:id/demographic", h.GetDemographic)
		patients.PUT("/:id/demographic", h.UpdateDemographic)
		patients.GET("/:id/medical", h.GetMedical)
		patients.PUT("/:id/medical", h.UpdateMedical)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.CreatePatient(c.Request.Context(), handler.CurrentPrincipal(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.service.ListPatients(c.Request.Context(), handler.CurrentPrincipal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) SearchPatients(c *gin.Context) {
	patients, err := h.service.SearchPatients(c.Request.Context(), handler.CurrentPrincipal(c), c.Query("query"), c.Query("field"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	details, err := h.service.GetPatient(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.UpdatePatient(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.service.DeletePatient(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id")); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetDemographic(c *gin.Context) {
	rec, err := h.service.GetDemographic(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateDemographic(c *gin.Context) {
	var req model.DemographicRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	rec, err := h.service.UpdateDemographic(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetMedical(c *gin.Context) {
	rec, err := h.service.GetMedical(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateMedical(c *gin.Context) {
	var req model.MedicalRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	rec, err := h.service.UpdateMedical(c.Request.Context(), handler.CurrentPrincipal(c), c.Param("id"), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
