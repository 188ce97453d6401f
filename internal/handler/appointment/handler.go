package appointment

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/handler"
	"github.com/jwalitptl/practice-api/internal/model"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input *model.AppointmentInput) (*model.Appointment, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, input *model.AppointmentInput) (*model.Appointment, error)
	Complete(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error)
	Cancel(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	CreateRecurring(ctx context.Context, ownerID uuid.UUID, input *model.RecurringInput) (*model.RecurringResult, error)
	Upcoming(ctx context.Context, ownerID uuid.UUID, limit int) ([]*model.UpcomingAppointment, error)
	Stats(ctx context.Context, ownerID uuid.UUID) (*model.AppointmentStats, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.POST("/recurring", h.CreateRecurring)
		appointments.GET("/upcoming", h.Upcoming)
		appointments.GET("/stats", h.Stats)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}
	var req model.AppointmentInput
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.Create(c.Request.Context(), owner, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithCreated(c, appointment)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}

	filters := &model.AppointmentFilters{
		OwnerID: owner,
		Status:  model.AppointmentStatus(c.Query("status")),
	}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			handler.Fail(c, apperrors.NewBadRequest("invalid patient_id", err))
			return
		}
		filters.PatientID = id
	}
	for param, dst := range map[string]*time.Time{"start_date": &filters.StartDate, "end_date": &filters.EndDate} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			handler.Fail(c, apperrors.NewBadRequest("invalid "+param, err))
			return
		}
		*dst = t
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.service.Get(c.Request.Context(), owner, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}
	var req model.AppointmentInput
	if !handler.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.Update(c.Request.Context(), owner, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
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

func (h *Handler) CompleteAppointment(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error)) {
	owner, id, ok := handler.OwnerAndID(c, "id")
	if !ok {
		return
	}

	appointment, err := fn(c.Request.Context(), owner, id)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

// CreateRecurring answers 201 when at least one occurrence was created and
// 422 when none was; failures are listed either way.
func (h *Handler) CreateRecurring(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}
	var req model.RecurringInput
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.service.CreateRecurring(c.Request.Context(), owner, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, httputil.Response{
			Status:  httputil.StatusError,
			Message: "no appointment in the series could be created",
			Data:    result,
		})
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) Upcoming(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			handler.Fail(c, apperrors.NewBadRequest("invalid limit", err))
			return
		}
		limit = n
	}

	upcoming, err := h.service.Upcoming(c.Request.Context(), owner, limit)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, upcoming)
}

func (h *Handler) Stats(c *gin.Context) {
	owner, ok := handler.Owner(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), owner)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}
