package session

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, ownerID, patientID uuid.UUID, input *model.SessionInput) (*model.Session, error)
	ListByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.SessionHistory, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, input *model.SessionUpdate) (*model.Session, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/:id/sessions", h.ListSessions)
	r.POST("/patients/:id/sessions", h.CreateSession)

	sessions := r.Group("/sessions")
	{
		sessions.GET("/:id", h.GetSession)
		sessions.PATCH("/:id", h.UpdateSession)
		sessions.DELETE("/:id", h.DeleteSession)
	}
}

// CreateSession numbers the session itself; a session_number in the body is ignored.
func (h *Handler) CreateSession(c *gin.Context) {
	owner, patientID, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}
	var req model.SessionInput
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Create(c.Request.Context(), owner, patientID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithCreated(c, session)
}

func (h *Handler) ListSessions(c *gin.Context) {
	owner, patientID, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	history, err := h.service.ListByPatient(c.Request.Context(), owner, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, history)
}

func (h *Handler) GetSession(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	session, err := h.service.Get(c.Request.Context(), owner, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) UpdateSession(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}
	var req model.SessionUpdate
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.service.Update(c.Request.Context(), owner, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) DeleteSession(c *gin.Context) {
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
