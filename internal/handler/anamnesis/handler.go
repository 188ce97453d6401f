package anamnesis

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Service interface {
	Upsert(ctx context.Context, ownerID, patientID uuid.UUID, input *model.AnamnesisInput) (*model.Anamnesis, error)
	Get(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Anamnesis, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/:id/anamnesis", h.GetAnamnesis)
	r.PUT("/patients/:id/anamnesis", h.UpsertAnamnesis)
	r.DELETE("/anamnesis/:id", h.DeleteAnamnesis)
}

// GetAnamnesis answers with an empty record, id null, when none exists yet.
func (h *Handler) GetAnamnesis(c *gin.Context) {
	owner, patientID, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	anamnesis, err := h.service.Get(c.Request.Context(), owner, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, anamnesis)
}

func (h *Handler) UpsertAnamnesis(c *gin.Context) {
	owner, patientID, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}
	var req model.AnamnesisInput
	if !handler.BindJSON(c, &req) {
		return
	}

	anamnesis, err := h.service.Upsert(c.Request.Context(), owner, patientID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, anamnesis)
}

func (h *Handler) DeleteAnamnesis(c *gin.Context) {
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
