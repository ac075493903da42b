package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/api/responses"
	reservationsvc "github.com/partsdepot/partsdepot-backend/internal/reservations"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

type reservationTransition func(ctx context.Context, actor reservationsvc.Actor, reservationID uuid.UUID) (*reservationsvc.ReservationView, error)

// AdminReservationConfirm moves a pending hold to confirmed.
func AdminReservationConfirm(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return adminReservationTransition(logg, svc.Confirm)
}

// AdminReservationCancel releases any reservation still holding stock.
func AdminReservationCancel(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return adminReservationTransition(logg, svc.Cancel)
}

// AdminReservationComplete consumes the held stock and records the sale.
func AdminReservationComplete(svc reservationsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return adminReservationTransition(logg, svc.Complete)
}

func adminReservationTransition(logg *logger.Logger, transition reservationTransition) http.HandlerFunc {
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

		reservation, err := transition(r.Context(), actor, reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}
