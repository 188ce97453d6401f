package patient

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input *model.PatientInput) (*model.Patient, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, input *model.PatientInput) (*model.Patient, error)
	ToggleStatus(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
		patients.PATCH("/:id/status", h.ToggleStatus)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}
	var req model.PatientInput
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.Create(c.Request.Context(), owner, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithCreated(c, patient)
}

func (h *Handler) ListPatients(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}

	patients, err := h.service.List(c.Request.Context(), &model.PatientFilters{
		OwnerID: owner,
		Search:  c.Query("search"),
		Status:  model.PatientStatus(c.Query("status")),
	})
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.Get(c.Request.Context(), owner, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}
	var req model.PatientInput
	if !handler.BindJSON(c, &req) {
		return
	}

	patient, err := h.service.Update(c.Request.Context(), owner, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

// DeletePatient removes the patient together with every dependent record.
func (h *Handler) DeletePatient(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), owner, id); err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}

func (h *Handler) ToggleStatus(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.ToggleStatus(c.Request.Context(), owner, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}
