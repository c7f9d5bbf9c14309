package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"courtside/internal/reservations/service"
	apperrors "courtside/pkg/errors"
	httputil "courtside/pkg/http"
	"courtside/pkg/logger"
	"courtside/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// PrincipalHeader carries the acting principal's identifier. The gateway in
// front of this service authenticates the caller and sets the header; the
// service treats it as trusted input and only resolves it to a role.
const PrincipalHeader = "X-Principal-ID"

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var booking model.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	actingID := r.Header.Get(PrincipalHeader)
	if err := h.service.Create(r.Context(), actingID, &booking); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	actingID := r.Header.Get(PrincipalHeader)

	if err := h.service.Cancel(r.Context(), actingID, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) ListForCourt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	courtID := ps.ByName("id")
	actingID := r.Header.Get(PrincipalHeader)

	from, to, err := httputil.ExtractTimeWindow(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForCourt", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	limit, offset, err := h.extractPagination(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForCourt", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, err := h.service.ListForCourt(r.Context(), actingID, courtID, from, to, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForCourt", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "ListForCourt", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) ListForPrincipal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principalID := ps.ByName("id")
	actingID := r.Header.Get(PrincipalHeader)

	limit, offset, err := h.extractPagination(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForPrincipal", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, err := h.service.ListForPrincipal(r.Context(), actingID, principalID, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListForPrincipal", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "ListForPrincipal", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) extractPagination(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("invalid limit parameter: %s", limitStr))
		}
	}

	var offset int64
	if offsetStr := query.Get("offset"); offsetStr != "" {
		var err error
		offset, err = strconv.ParseInt(offsetStr, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput(fmt.Sprintf("invalid offset parameter: %s", offsetStr))
		}
	}

	return limit, offset, nil
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
	router.GET("/api/v1/courts/:id/bookings", h.ListForCourt)
	router.GET("/api/v1/principals/:id/bookings", h.ListForPrincipal)
}
