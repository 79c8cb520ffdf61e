// Package handler adapts EventsFacade to Gin HTTP endpoints: the admin
// surface spec.md §6 says an embedding process owns.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/arjunbhagat/eventsched/internal/facade"
	"github.com/arjunbhagat/eventsched/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type EventsHandler struct {
	facade *facade.Facade
	logger *slog.Logger
}

func NewEventsHandler(f *facade.Facade, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{facade: f, logger: logger.With("component", "events_handler")}
}

type scheduleRequest struct {
	Kind       string     `json:"kind"       binding:"required,oneof=one_shot recurring"`
	ExecuteAt  *time.Time `json:"execute_at"`
	Expression int64      `json:"expression"`
	Unit       string     `json:"unit"`
	Starts     *time.Time `json:"starts"`
	Ends       *time.Time `json:"ends"`
}

func (r scheduleRequest) toDomain() domain.Schedule {
	if r.Kind == "one_shot" {
		at := time.Time{}
		if r.ExecuteAt != nil {
			at = *r.ExecuteAt
		}
		return domain.Schedule{Kind: domain.KindOneShot, ExecuteAt: at}
	}
	return domain.Schedule{
		Kind:       domain.KindRecurring,
		Expression: r.Expression,
		Unit:       domain.IntervalUnit(r.Unit),
		Starts:     r.Starts,
		Ends:       r.Ends,
	}
}

type createEventRequest struct {
	Schema       string          `json:"schema"        binding:"required"`
	Name         string          `json:"name"          binding:"required"`
	Body         string          `json:"body"          binding:"required"`
	TimeZone     string          `json:"time_zone"`
	Schedule     scheduleRequest `json:"schedule"      binding:"required"`
	OnCompletion string          `json:"on_completion" binding:"omitempty,oneof=DROP PRESERVE"`
	Comment      string          `json:"comment"`
	IfNotExists  bool            `json:"if_not_exists"`
}

type updateEventRequest struct {
	NewSchema    string          `json:"new_schema"`
	NewName      string          `json:"new_name"`
	Body         string          `json:"body"          binding:"required"`
	TimeZone     string          `json:"time_zone"`
	Schedule     scheduleRequest `json:"schedule"      binding:"required"`
	OnCompletion string          `json:"on_completion" binding:"omitempty,oneof=DROP PRESERVE"`
	Comment      string          `json:"comment"`
}

func (h *EventsHandler) Create(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	onCompletion := domain.OnCompletion(req.OnCompletion)
	if onCompletion == "" {
		onCompletion = domain.OnCompletionDrop
	}

	e := &domain.EventRecord{
		Schema:       req.Schema,
		Name:         req.Name,
		Definer:      middleware.DefinerFromContext(c),
		TimeZone:     req.TimeZone,
		Body:         req.Body,
		Schedule:     req.Schedule.toDomain(),
		OnCompletion: onCompletion,
		Comment:      req.Comment,
		Status:       domain.StatusEnabled,
	}

	warning, err := h.facade.Create(c.Request.Context(), e, req.IfNotExists)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if warning != "" {
		c.JSON(http.StatusOK, gin.H{"event": e, "warning": warning})
		return
	}

	c.JSON(http.StatusCreated, e)
}

func (h *EventsHandler) Update(c *gin.Context) {
	oldSchema, oldName := c.Param("schema"), c.Param("name")

	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newSchema, newName := oldSchema, oldName
	if req.NewSchema != "" {
		newSchema = req.NewSchema
	}
	if req.NewName != "" {
		newName = req.NewName
	}

	onCompletion := domain.OnCompletion(req.OnCompletion)
	if onCompletion == "" {
		onCompletion = domain.OnCompletionDrop
	}

	e := &domain.EventRecord{
		Schema:       newSchema,
		Name:         newName,
		Definer:      middleware.DefinerFromContext(c),
		TimeZone:     req.TimeZone,
		Body:         req.Body,
		Schedule:     req.Schedule.toDomain(),
		OnCompletion: onCompletion,
		Comment:      req.Comment,
		Status:       domain.StatusEnabled,
	}

	if err := h.facade.Update(c.Request.Context(), oldSchema, oldName, e); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

func (h *EventsHandler) Drop(c *gin.Context) {
	schema, name := c.Param("schema"), c.Param("name")
	ifExists := c.Query("if_exists") == "true"

	warning, err := h.facade.Drop(c.Request.Context(), schema, name, ifExists)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if warning != "" {
		c.JSON(http.StatusOK, gin.H{"warning": warning})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EventsHandler) ShowCreate(c *gin.Context) {
	schema, name := c.Param("schema"), c.Param("name")
	ddl, err := h.facade.ShowCreate(c.Request.Context(), schema, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ddl": ddl})
}

func (h *EventsHandler) List(c *gin.Context) {
	events, err := h.facade.FillInfoSchema(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventsHandler) Start(c *gin.Context) {
	if err := h.facade.Start(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *EventsHandler) Stop(c *gin.Context) {
	h.facade.Stop()
	c.Status(http.StatusAccepted)
}

func (h *EventsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.facade.DumpInternalStatus())
}

func (h *EventsHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "event already exists"})
	case errors.Is(err, domain.ErrBadSchema),
		errors.Is(err, domain.ErrMicrosecondUnsupported),
		errors.Is(err, domain.ErrIntervalOutOfRange),
		errors.Is(err, domain.ErrInvalidDateRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("events handler error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
