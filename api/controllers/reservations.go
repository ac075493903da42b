package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/api/middleware"
	"github.com/partsdepot/partsdepot-backend/api/responses"
	"github.com/partsdepot/partsdepot-backend/api/validators"
	reservationsvc "github.com/partsdepot/partsdepot-backend/internal/reservations"
	"github.com/partsdepot/partsdepot-backend/pkg/enums"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
	"github.com/partsdepot/partsdepot-backend/pkg/pagination"
)

func actorFromContext(r *http.Request) (reservationsvc.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return reservationsvc.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return reservationsvc.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "role context missing")
	}
	return reservationsvc.Actor{UserID: userID, Role: role}, nil
}

// ReservationCreate places holds on every requested line in one shot.
func ReservationCreate(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reservationsvc.CreateInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Create(r.Context(), actor, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

// ReservationList pages the caller's reservations. Staff see everyone's.
func ReservationList(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query, err := reservationQueryFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), actor, *query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ReservationDetail loads one reservation within the caller's scope.
func ReservationDetail(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationID, err := uuid.Parse(chi.URLParam(r, "reservationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		reservation, err := svc.Get(r.Context(), actor, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// ReservationCancel releases the caller's hold.
func ReservationCancel(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservationID, err := uuid.Parse(chi.URLParam(r, "reservationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		reservation, err := svc.Cancel(r.Context(), actor, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

func reservationQueryFromRequest(r *http.Request) (*reservationsvc.ListQuery, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}

	query := &reservationsvc.ListQuery{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("customer_id")); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id")
		}
		query.CustomerID = &customerID
	}
	return query, nil
}
