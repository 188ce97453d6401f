package pricing

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Service interface {
	Upsert(ctx context.Context, ownerID, patientID uuid.UUID, input *model.PricingInput) (*model.Pricing, error)
	Get(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Pricing, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/:id/pricing", h.GetPricing)
	r.PUT("/patients/:id/pricing", h.UpsertPricing)
	r.DELETE("/pricing/:id", h.DeletePricing)
}

// GetPricing falls back to the default price, flagged is_default.
func (h *Handler) GetPricing(c *gin.Context) {
	owner, patientID, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	pricing, err := h.service.Get(c.Request.Context(), owner, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pricing)
}

func (h *Handler) UpsertPricing(c *gin.Context) {
	owner, patientID, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}
	var req model.PricingInput
	if !handler.BindJSON(c, &req) {
		return
	}

	pricing, err := h.service.Upsert(c.Request.Context(), owner, patientID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, pricing)
}

func (h *Handler) DeletePricing(c *gin.Context) {
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
