package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partsdepot/partsdepot-backend/api/responses"
	"github.com/partsdepot/partsdepot-backend/api/validators"
	mediasvc "github.com/partsdepot/partsdepot-backend/internal/media"
	partsvc "github.com/partsdepot/partsdepot-backend/internal/parts"
	pkgerrors "github.com/partsdepot/partsdepot-backend/pkg/errors"
	"github.com/partsdepot/partsdepot-backend/pkg/logger"
)

// AdminAddInventory books salvaged stock in, merging into an existing
// listing when the fitment key matches.
func AdminAddInventory(svc partsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload partsvc.AddInventoryInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		part, err := svc.AddInventory(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, part)
	}
}

// AdminAdjustStock replaces the total or applies a delta, never dropping
// below reserved units.
func AdminAdjustStock(svc partsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := parsePartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload partsvc.AdjustStockInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		part, err := svc.AdjustStock(r.Context(), partID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, part)
	}
}

// AdminUpdatePart patches listing metadata.
func AdminUpdatePart(svc partsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := parsePartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload partsvc.UpdatePartInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		part, err := svc.UpdatePart(r.Context(), partID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, part)
	}
}

// AdminDeletePart removes a listing with no reserved units.
func AdminDeletePart(svc partsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := parsePartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeletePart(r.Context(), partID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminPresignPartPhoto signs an upload URL for one listing photo.
func AdminPresignPartPhoto(svc mediasvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := parsePartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload mediasvc.PresignInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PresignPartPhoto(r.Context(), partID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parsePartID(r *http.Request) (uuid.UUID, error) {
	partID, err := uuid.Parse(chi.URLParam(r, "partId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid part id")
	}
	return partID, nil
}
