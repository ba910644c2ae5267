package handler

import (
	"net/http"

	"bureau/internal/bookings/service"
	httputil "bureau/pkg/http"
	"bureau/pkg/logger"
	"bureau/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.BookSlot(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByToken(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByToken(r.Context(), ps.ByName("token"))
	if err != nil {
		h.writeError(w, "GetByToken", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByToken", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := h.service.Cancel(r.Context(), ps.ByName("token")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.RescheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	booking, err := h.service.Reschedule(r.Context(), ps.ByName("token"), &req)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var q model.AvailabilityQuery
	if err := httputil.DecodeJSON(r, &q); err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	result, err := h.service.CheckAvailability(r.Context(), &q)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) AdminCancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := h.service.AdminCancel(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "AdminCancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/token/:token", h.GetByToken)
	router.DELETE("/api/v1/bookings/token/:token", h.Cancel)
	router.PATCH("/api/v1/bookings/token/:token", h.Reschedule)
	router.POST("/api/v1/availability", h.CheckAvailability)
	router.DELETE("/api/v1/admin/bookings/:id", h.AdminCancel)
}
